package dashboard

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
		ok   bool
	}{
		{line: "r", want: Command{Name: "r", Args: []string{}}, ok: true},
		{line: "  N example.com  full ", want: Command{Name: "n", Args: []string{"example.com", "full"}}, ok: true},
		{line: "s abc", want: Command{Name: "s", Args: []string{"abc"}}, ok: true},
		{line: "   ", ok: false},
		{line: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := ParseCommand(tt.line)
			if ok != tt.ok {
				t.Fatalf("ParseCommand(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestReadCommands(t *testing.T) {
	input := strings.NewReader("r\n\nn example.com\nq\n")
	var got []string
	for cmd := range ReadCommands(context.Background(), input) {
		got = append(got, cmd.Name)
	}
	want := []string{"r", "n", "q"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadCommands() = %v, want %v", got, want)
	}
}
