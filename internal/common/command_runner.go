package common

import (
	"context"
	"fmt"
	"io"

	"resumeflow/internal/errors"
)

// CreateInputFunc defines how to build an operation's input from the command arguments.
type CreateInputFunc[Input any] func(fp *FileProcessor, args []string) (Input, error)

// LogDetailsFunc defines how to log the start of an operation.
type LogDetailsFunc[Input any] func(input Input, cfg CommandConfig)

// OperationFunc is a generic function signature for a command's work.
type OperationFunc[Input, Output any] func(context.Context, Input) (Output, error)

// RunCommand encapsulates the common logic of file-based CLI commands: read
// the inputs, run the operation, format and write the result.
func RunCommand[Input, Output any](
	ctx context.Context,
	logger *errors.Logger,
	out io.Writer,
	cmdConfig CommandConfig,
	args []string,
	createInput CreateInputFunc[Input],
	operation OperationFunc[Input, Output],
	logDetails LogDetailsFunc[Input],
) error {
	fileProcessor := NewFileProcessor(logger)
	outputHandler := NewOutputHandler(out, logger)

	input, err := createInput(fileProcessor, args)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	if logDetails != nil {
		logDetails(input, cmdConfig)
	}

	result, err := operation(ctx, input)
	if err != nil {
		return err
	}

	return outputHandler.HandleOutput(result, cmdConfig)
}
