package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"nrgchamp/homectl/internal/devicesim"
)

var (
	simBroker   string
	simDevice   string
	simProtocol string
	simTopic    string
	simInterval time.Duration
)

func init() {
	devicesimCmd.Flags().StringVar(&simBroker, "broker", "tcp://localhost:1883", "MQTT broker address")
	devicesimCmd.Flags().StringVar(&simDevice, "device", "sim-1", "device id to publish as")
	devicesimCmd.Flags().StringVar(&simProtocol, "protocol", "zigbee", "wire protocol to emulate: zigbee or tasmota")
	devicesimCmd.Flags().StringVar(&simTopic, "event-topic", "zigbee2mqtt", "base event topic the target bridge is configured with")
	devicesimCmd.Flags().DurationVar(&simInterval, "interval", 10*time.Second, "publish interval")
	rootCmd.AddCommand(devicesimCmd)
}

var devicesimCmd = &cobra.Command{
	Use:   "devicesim",
	Short: "Publish synthetic telemetry for one simulated device",
	RunE:  runDevicesim,
}

func runDevicesim(cmd *cobra.Command, args []string) error {
	sim, err := devicesim.New(simBroker, simDevice, devicesim.Protocol(simProtocol), simTopic, simInterval)
	if err != nil {
		return err
	}
	sim.Start()
	defer sim.Stop()

	fmt.Fprintf(cmd.OutOrStdout(), "publishing synthetic %s telemetry for %q every %s (ctrl-c to stop)\n", simProtocol, simDevice, simInterval)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs
	return nil
}
