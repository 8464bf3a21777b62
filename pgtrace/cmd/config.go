package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	flagRecord = "record"
	flagLog    = "log"
	flagFrames = "frames"
	flagPort   = "port"

	envRecord      = "PGTRACE_RECORD"
	envLog         = "PGTRACE_LOG"
	envFrames      = "PGTRACE_MEMORY_FRAMES"
	envMonitorPort = "PGTRACE_MONITOR_PORT"

	defaultNumFrames = 8192
)

// config collects the settings shared by all the commands. Flags given on the
// command line win over the environment, which may be populated from a .env
// file in the working directory.
type config struct {
	recordPath  string
	logEvents   bool
	numFrames   uint64
	monitorPort int
}

func loadConfig(cmd *cobra.Command) (config, error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return config{}, fmt.Errorf("loading .env: %w", err)
	}

	cfg := config{numFrames: defaultNumFrames}

	err = cfg.fromEnv()
	if err != nil {
		return config{}, err
	}

	cfg.fromFlags(cmd)

	if cfg.numFrames == 0 {
		return config{}, errors.New("the machine needs at least one frame")
	}

	return cfg, nil
}

func (c *config) fromEnv() error {
	if v, ok := os.LookupEnv(envRecord); ok {
		c.recordPath = v
	}

	if v, ok := os.LookupEnv(envLog); ok {
		logEvents, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envLog, err)
		}

		c.logEvents = logEvents
	}

	if v, ok := os.LookupEnv(envFrames); ok {
		numFrames, err := strconv.ParseUint(v, 0, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", envFrames, err)
		}

		c.numFrames = numFrames
	}

	if v, ok := os.LookupEnv(envMonitorPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envMonitorPort, err)
		}

		c.monitorPort = port
	}

	return nil
}

func (c *config) fromFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	if flags.Changed(flagRecord) {
		c.recordPath, _ = flags.GetString(flagRecord)
	}

	if flags.Changed(flagLog) {
		c.logEvents, _ = flags.GetBool(flagLog)
	}

	if flags.Changed(flagFrames) {
		c.numFrames, _ = flags.GetUint64(flagFrames)
	}

	if flags.Lookup(flagPort) != nil && flags.Changed(flagPort) {
		c.monitorPort, _ = flags.GetInt(flagPort)
	}
}
