package config

import "time"

const (
	AppName = "helpdesk"

	EnvAgentURL = "HELPDESK_AGENT_URL"
	EnvDataDir  = "HELPDESK_DATA_DIR"
	EnvDebug    = "HELPDESK_DEBUG"

	DefaultAgentURL       = "http://localhost:8000"
	DefaultStreamPath     = "/question/stream"
	DefaultSentinelLength = 14
	DefaultConnectTimeout = 5 * time.Second
)

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/helpdesk",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		Agent: AgentConfig{
			BaseURL:        DefaultAgentURL,
			StreamPath:     DefaultStreamPath,
			SentinelLength: DefaultSentinelLength,
			ConnectTimeout: DefaultConnectTimeout.String(),
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

func GenerateSystemConfigTemplate() string {
	return `# helpdesk System Configuration
# Location: ~/.config/helpdesk/settings.toml
# This file uses TOML format: https://toml.io

# Directory where transcripts and user config are stored
data_directory = "~/.local/share/helpdesk"
`
}

func GenerateUserConfigTemplate() string {
	return `# helpdesk User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

[agent]
# Support agent server URL
base_url = "http://localhost:8000"

# Streaming endpoint, relative to base_url
stream_path = "/question/stream"

# Number of trailing characters the server appends to mark the end of a reply
sentinel_length = 14

# Exact end-of-reply marker (optional). When set, it is checked before stripping
# and sentinel_length is ignored.
# sentinel = ""

# Abort a question that takes longer than this (Go duration, empty = never)
# request_timeout = "2m"

# Give up connecting to the server after this long
connect_timeout = "5s"

[history]
# Store transcripts and reactions in <data_directory>/transcripts.db
enabled = true
`
}
