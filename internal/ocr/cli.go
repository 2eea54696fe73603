package ocr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strings"
)

// CLIEngine runs the tesseract executable once per image, feeding the image
// on stdin and reading the text from stdout.
type CLIEngine struct {
	command        string
	tessdataPrefix string
}

// NewCLIEngine returns an engine that runs command, which is either a path or
// a name resolved through PATH.
func NewCLIEngine(command, tessdataPrefix string) *CLIEngine {
	if command == "" {
		command = "tesseract"
	}
	return &CLIEngine{command: command, tessdataPrefix: tessdataPrefix}
}

// Name implements Engine.
func (e *CLIEngine) Name() string { return "tesseract-cli" }

func (e *CLIEngine) lookPath() (string, error) {
	path, err := exec.LookPath(e.command)
	if err != nil {
		return "", fmt.Errorf("%w: %s not found: %v", ErrEngineUnavailable, e.command, err)
	}
	return path, nil
}

// args builds the argument list: "stdin stdout" followed by the options.
func (e *CLIEngine) args(params Params) []string {
	args := []string{"stdin", "stdout"}
	if e.tessdataPrefix != "" {
		args = append(args, "--tessdata-dir", e.tessdataPrefix)
	}
	return append(args, params.Args()...)
}

// Recognize implements Engine.
func (e *CLIEngine) Recognize(ctx context.Context, img image.Image, params Params) (string, error) {
	path, err := e.lookPath()
	if err != nil {
		return "", err
	}

	var in bytes.Buffer
	if err := png.Encode(&in, img); err != nil {
		return "", fmt.Errorf("failed to encode image for OCR: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, e.args(params)...)
	cmd.Stdin = &in
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %s: %v: %s", ErrEngineUnavailable, e.command, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Check implements Checker using "tesseract --version".
func (e *CLIEngine) Check(ctx context.Context) (string, error) {
	path, err := e.lookPath()
	if err != nil {
		return "", err
	}

	out, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %s --version: %v", ErrEngineUnavailable, e.command, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	return "", nil
}
