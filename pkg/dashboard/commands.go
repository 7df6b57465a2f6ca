package dashboard

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/scanwatch/pkg/notify"
	"github.com/projectdiscovery/scanwatch/pkg/types"
)

// Command is one line typed by the user
type Command struct {
	Name string
	Args []string
}

const helpText = `Commands:
  r                   refresh system status
  n <target> [type]   start a new scan
  s <task-id>         stop a running scan
  ? | h               show this help
  q                   quit`

// ParseCommand splits a line into a command, false for a blank line
func ParseCommand(line string) (Command, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}, true
}

// ReadCommands parses lines from r until EOF or ctx ends. The returned
// channel is closed when reading stops.
func ReadCommands(ctx context.Context, r io.Reader) <-chan Command {
	commands := make(chan Command)
	go func() {
		defer close(commands)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			cmd, ok := ParseCommand(scanner.Text())
			if !ok {
				continue
			}
			select {
			case commands <- cmd:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			gologger.Debug().Msgf("stopped reading commands: %v", err)
		}
	}()
	return commands
}

// execute runs cmd and reports whether the user asked to quit
func (c *Controller) execute(ctx context.Context, cmd Command) bool {
	switch cmd.Name {
	case "q", "quit", "exit":
		return true
	case "r", "refresh":
		c.refresh(ctx)
		c.render()
	case "n", "new":
		if len(cmd.Args) == 0 {
			c.notify(notify.Warning, "Usage: n <target> [type]")
			return false
		}
		req := types.StartScanRequest{Target: cmd.Args[0]}
		if len(cmd.Args) > 1 {
			req.Type = cmd.Args[1]
		}
		c.startScan(ctx, req)
	case "s", "stop":
		if len(cmd.Args) == 0 {
			c.notify(notify.Warning, "Usage: s <task-id>")
			return false
		}
		c.stopScan(ctx, cmd.Args[0])
	case "?", "h", "help":
		gologger.Print().Msgf("%s\n", helpText)
	default:
		c.notify(notify.Warning, fmt.Sprintf("Unknown command: %s (type ? for help)", cmd.Name))
	}
	return false
}

// startScan requests a scan in the background. The registry only changes
// when the server confirms with scan_started.
func (c *Controller) startScan(ctx context.Context, req types.StartScanRequest) {
	if err := req.Validate(); err != nil {
		c.notify(notify.Error, err.Error())
		return
	}
	if c.options.API == nil {
		c.notify(notify.Error, "Scan API is not configured")
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		resp, err := c.options.API.StartScan(ctx, req)
		if err != nil {
			gologger.Warning().Msgf("Failed to start scan on %s: %v", req.Target, err)
			c.notify(notify.Error, fmt.Sprintf("Failed to start scan: %v", err))
			return
		}
		c.notify(notify.Info, fmt.Sprintf("Scan requested: %s", resp.TaskID))
	}()
}

func (c *Controller) stopScan(ctx context.Context, taskID string) {
	if c.options.API == nil {
		c.notify(notify.Error, "Scan API is not configured")
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.options.API.StopScan(ctx, taskID); err != nil {
			gologger.Warning().Msgf("Failed to stop scan %s: %v", taskID, err)
			c.notify(notify.Error, fmt.Sprintf("Failed to stop scan: %v", err))
			return
		}
		c.notify(notify.Info, fmt.Sprintf("Stop requested: %s", taskID))
	}()
}
