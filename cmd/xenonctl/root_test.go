package main

import "testing"

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	want := map[string]bool{"run": false, "jobs": false, "cp": false}

	for _, cmd := range root.Commands() {
		name := cmd.Name()
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}

	for name, found := range want {
		if !found {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}
