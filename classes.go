package yolov5

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Classes maps class ids produced by the model to human readable names.
// The table is either fully loaded or empty, there is no partial state.
// Line order in the source defines the class ids starting from 0
type Classes struct {
	names  []string
	logger Logger
}

// NewClasses returns an empty class table
func NewClasses() *Classes {
	return &Classes{}
}

// SetLogger replaces the logging sink used by the class table
func (c *Classes) SetLogger(logger Logger) {
	c.logger = logger
}

// Load replaces the class table with the given list of names
func (c *Classes) Load(names []string) error {

	if len(names) == 0 {
		c.logf(LogError, "[Classes] Load() failure: specified list of class names is empty")
		return fmt.Errorf("load classes: %w", ErrInvalidInput)
	}

	c.names = append([]string(nil), names...)
	c.logf(LogInfo, "[Classes] Loaded %d classes", len(c.names))
	return nil
}

// LoadFromFile reads the class table from a newline delimited text file,
// one class name per line.  Blank lines are skipped
func (c *Classes) LoadFromFile(file string) error {

	f, err := os.Open(file)

	if err != nil {
		c.logf(LogError, "[Classes] LoadFromFile() failure: could not open specified file: %v", err)
		return fmt.Errorf("open classes file: %w", ErrFilesystem)
	}

	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if len(line) > 0 {
			names = append(names, line)
		}
	}

	if err := scanner.Err(); err != nil {
		c.logf(LogError, "[Classes] LoadFromFile() failure: error reading file: %v", err)
		return fmt.Errorf("read classes file: %w", ErrFilesystem)
	}

	if len(names) == 0 {
		c.logf(LogError, "[Classes] LoadFromFile() failure: could not load any classes")
		return fmt.Errorf("no classes in file: %w", ErrOther)
	}

	c.names = names
	c.logf(LogInfo, "[Classes] Loaded %d classes", len(c.names))
	return nil
}

// IsLoaded indicates whether a class table has been loaded
func (c *Classes) IsLoaded() bool {
	return len(c.names) > 0
}

// GetName returns the name attached to the given class id
func (c *Classes) GetName(classID int) (string, error) {

	if classID < 0 || classID >= len(c.names) {
		c.logf(LogError, "[Classes] GetName() failure: no info about specified classId '%d'", classID)
		return "", fmt.Errorf("class id %d out of range: %w", classID, ErrInvalidInput)
	}

	return c.names[classID], nil
}

func (c *Classes) logf(level LogLevel, format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Logf(level, format, args...)
	}
}
