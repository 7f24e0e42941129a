package toon

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// CommandEncoder runs an external converter as `<command...> <in.json> -o <out.toon>`.
type CommandEncoder struct {
	Command []string
}

func (c CommandEncoder) Name() string {
	if len(c.Command) == 0 {
		return "command"
	}
	return "command:" + filepath.Base(c.Command[0])
}

func (c CommandEncoder) Encode(ctx context.Context, minJSON []byte) ([]byte, error) {
	if len(c.Command) == 0 {
		return nil, &EncodingError{Encoder: c.Name(), Err: fmt.Errorf("no command configured")}
	}
	bin, err := exec.LookPath(c.Command[0])
	if err != nil {
		return nil, &EncodingError{Encoder: c.Name(), Err: fmt.Errorf("unavailable: %w", err)}
	}

	dir, err := os.MkdirTemp("", "skillcatalog-toon-")
	if err != nil {
		return nil, &EncodingError{Encoder: c.Name(), Err: err}
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "catalog.json")
	out := filepath.Join(dir, "catalog.toon")
	if err := os.WriteFile(in, minJSON, 0644); err != nil {
		return nil, &EncodingError{Encoder: c.Name(), Err: err}
	}

	args := append(append([]string{}, c.Command[1:]...), in, "-o", out)
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &EncodingError{Encoder: c.Name(), Err: fmt.Errorf("%w: %s", err, bytes.TrimSpace(stderr.Bytes()))}
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, &EncodingError{Encoder: c.Name(), Err: fmt.Errorf("no output produced: %w", err)}
	}
	return data, nil
}
