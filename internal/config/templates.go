package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	KindServer = "server"
	KindClient = "client"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindServer, "imagedb":
		return serverTemplate, nil
	case KindClient, "getimage":
		return clientTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// Check parses and validates the file at path as kind.
func Check(path, kind string) error {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindServer, "imagedb":
		_, err := LoadServerFile(path)
		return err
	case KindClient, "getimage":
		_, err := LoadClientFile(path)
		return err
	default:
		return fmt.Errorf("unknown config kind: %s", kind)
	}
}

const serverTemplate = `node_id = "imagedb"
listen_addr = ":3000"
admin_addr = "127.0.0.1:3001"
max_connections = 0
tick_interval = "10ms"
read_timeout = "15s"
write_timeout = "15s"
max_name_bytes = 4096

[store]
backend = "fs"
root = "images"
cache = true
max_entry_bytes = 8388608

[store.s3]
endpoint = ""
bucket = ""
prefix = ""
region = "us-east-1"
use_path_style = false

[log]
level = "info"
format = "console"
timestamp = true
file = ""
`

const clientTemplate = `server = "127.0.0.1:3000"
version = 9
output_dir = "."
open = false
connect_timeout = "5s"
read_timeout = "15s"
write_timeout = "15s"
max_message_bytes = 67108864

[log]
level = "info"
format = "console"
timestamp = true
`
