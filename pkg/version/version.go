package version

// AgentVersion is reported in metadata payloads, the status endpoint and
// the version command.
const AgentVersion = "1.1.2"
