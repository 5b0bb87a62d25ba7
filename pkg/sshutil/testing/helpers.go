package testing

// WithFiles pre-populates the mock filesystem with files.
// Keys are paths, values are file contents.
func WithFiles(client *MockClient, files map[string]string) {
	for p, content := range files {
		_ = client.GetFS().WriteFile(p, []byte(content))
	}
}

// WithDirs pre-populates the mock filesystem with directories.
func WithDirs(client *MockClient, dirs []string) {
	for _, dir := range dirs {
		_ = client.GetFS().MkdirAll(dir)
	}
}

// WithOutputs registers canned stdout for exact commands.
func WithOutputs(client *MockClient, outputs map[string]string) {
	for cmd, out := range outputs {
		client.SetCommandResponse(cmd, CommandResponse{Stdout: []byte(out)})
	}
}
