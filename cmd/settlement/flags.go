package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	version  = "0.1.0"
	progName = "nemymarket settlement"
	source   = "https://github.com/Caskiuz/nemymarket"
)

var usage = func() {
	fmt.Fprintf(flag.CommandLine.Output(), "%s\nSource code:\t%s\nVersion:\t%s\nUsage of %s:\n",
		progName,
		source,
		version,
		progName)
	flag.PrintDefaults()
}

var (
	ErrNotFullIP   = errors.New("given ip address and port incorrect")
	ErrInvalidIP   = errors.New("incorrect ip address")
	ErrInvalidPort = errors.New("incorrect port number")
)

type netAddress struct {
	ipaddr string
	port   int
}

func (n *netAddress) String() string {
	return fmt.Sprintf("%s:%d", n.ipaddr, n.port)
}
func (n *netAddress) Set(value string) error {
	value = strings.TrimPrefix(value, "http://")
	values := strings.Split(value, ":")
	if len(values) != 2 {
		return fmt.Errorf("%w: \"%s\"", ErrNotFullIP, value)
	}
	n.ipaddr = values[0]
	if n.ipaddr == "" {
		return fmt.Errorf("%w: \"%s\"", ErrInvalidIP, values[0])
	}
	var err error
	n.port, err = strconv.Atoi(values[1])
	if err != nil {
		return fmt.Errorf("%w: \"%s\"", ErrInvalidPort, values[1])
	}
	return nil
}

type Flags struct {
	APIAddress      netAddress
	TransferAddress netAddress
	DatabaseDSN     string
	LogLevel        string
	KafkaBrokers    string
	KafkaTopic      string
	RedisAddress    string
	ProcessorToken  string
	AdminToken      string
	HoldDuration    time.Duration
	JobInterval     time.Duration
}

func (f *Flags) String() string {
	return fmt.Sprintf("APIAddress: %s, "+
		"TransferAddress: %s, "+
		"DatabaseDSN: %s, "+
		"LogLevel: %s, "+
		"KafkaBrokers: %s, "+
		"KafkaTopic: %s, "+
		"RedisAddress: %s, "+
		"HoldDuration: %s, "+
		"JobInterval: %s",
		f.APIAddress.String(),
		f.TransferAddress.String(),
		f.DatabaseDSN,
		f.LogLevel,
		f.KafkaBrokers,
		f.KafkaTopic,
		f.RedisAddress,
		f.HoldDuration,
		f.JobInterval,
	)
}

var (
	CliOptions = Flags{
		APIAddress: netAddress{
			ipaddr: "localhost",
			port:   8080,
		},
		TransferAddress: netAddress{
			ipaddr: "localhost",
			port:   8090,
		},
		DatabaseDSN: "",
		LogLevel:    "info",
	}
)

func parseFlags() error {
	flag.Usage = usage
	flag.Var(&CliOptions.APIAddress, "a", "ip and port of server in format <ip>:<port>")
	flag.Var(&CliOptions.TransferAddress, "t", "ip and port of bank transfer system in format <ip>:<port>")
	flag.StringVar(&CliOptions.DatabaseDSN, "d", "", "Database DSN, empty runs on in-memory stores")
	flag.StringVar(&CliOptions.LogLevel, "l", "info", "loglevel")
	flag.StringVar(&CliOptions.KafkaBrokers, "b", "", "comma-separated kafka brokers, empty disables the consumer")
	flag.StringVar(&CliOptions.KafkaTopic, "topic", "order.delivered", "kafka topic with delivered-order events")
	flag.StringVar(&CliOptions.RedisAddress, "r", "", "redis address for the settings store, empty uses default rates")
	flag.StringVar(&CliOptions.ProcessorToken, "processor-token", "", "token expected from the payment processor")
	flag.StringVar(&CliOptions.AdminToken, "admin-token", "", "token expected on admin endpoints")
	flag.DurationVar(&CliOptions.HoldDuration, "hold", 24*time.Hour, "how long card earnings stay on hold")
	flag.DurationVar(&CliOptions.JobInterval, "interval", time.Minute, "background job tick interval")

	flag.Parse()

	if envRunAddr := os.Getenv("RUN_ADDRESS"); envRunAddr != "" {
		err := CliOptions.APIAddress.Set(envRunAddr)
		if err != nil {
			return err
		}
	}
	if envTransferAddr := os.Getenv("TRANSFER_SYSTEM_ADDRESS"); envTransferAddr != "" {
		err := CliOptions.TransferAddress.Set(envTransferAddr)
		if err != nil {
			return err
		}
	}
	if envDatabaseDSN := os.Getenv("DATABASE_URI"); envDatabaseDSN != "" {
		CliOptions.DatabaseDSN = envDatabaseDSN
	}
	if envLogLevel := os.Getenv("LOG_LEVEL"); envLogLevel != "" {
		CliOptions.LogLevel = envLogLevel
	}
	if envBrokers := os.Getenv("KAFKA_BROKERS"); envBrokers != "" {
		CliOptions.KafkaBrokers = envBrokers
	}
	if envTopic := os.Getenv("KAFKA_TOPIC"); envTopic != "" {
		CliOptions.KafkaTopic = envTopic
	}
	if envRedis := os.Getenv("REDIS_ADDRESS"); envRedis != "" {
		CliOptions.RedisAddress = envRedis
	}
	if envToken := os.Getenv("PROCESSOR_TOKEN"); envToken != "" {
		CliOptions.ProcessorToken = envToken
	}
	if envToken := os.Getenv("ADMIN_TOKEN"); envToken != "" {
		CliOptions.AdminToken = envToken
	}
	if envHold := os.Getenv("HOLD_DURATION"); envHold != "" {
		hold, err := time.ParseDuration(envHold)
		if err != nil {
			return err
		}
		CliOptions.HoldDuration = hold
	}

	return nil
}
