package config

import (
	"fmt"
	"os"
)

// Template is a commented starter config with every key at its default.
const Template = `# rtmctl watcher config
url = "wss://rtm.example.com/websocket/REPLACE_ME"
svn_rev = ""

connect_timeout = "10s"
handshake_timeout = "10s"
write_timeout = "10s"

max_message_bytes = 8388608
read_chunk_bytes = 1024

# messages per second; 0 disables pacing
send_rate = 0.0
send_burst = 1

reconnect = true
max_connect_attempts = 0
backoff_initial = "250ms"
backoff_max = "30s"

# keepalive ping; "0s" disables
ping_interval = "30s"

admin_addr = "127.0.0.1:7070"
admin_cors_origins = []

log_level = "info"
`

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(Template), 0o600)
}
