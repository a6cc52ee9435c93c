package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/leandrodaf/midiserial/internal/logger"
	"github.com/leandrodaf/midiserial/sdk/contracts"
	"github.com/leandrodaf/midiserial/sdk/midi"
)

func main() {
	log := logger.NewZapLogger()
	defer log.Sync()

	inputs, outputs, err := midi.ListEndpoints(contracts.SerialTransport)
	if err != nil || len(inputs) == 0 {
		log.Error("No serial ports found or error listing ports", log.Field().Error("error", err))
		return
	}
	fmt.Println("Available serial ports:", inputs)

	client, err := midi.NewMIDIClient(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
		contracts.WithEndpoints(inputs[0], outputs[0]),
	)
	if err != nil {
		log.Error("Failed to initialize MIDI client", log.Field().Error("error", err))
		return
	}
	defer client.Stop()

	client.OnNoteOn(func(channel, note, velocity uint8) {
		log.Info("Note On",
			log.Field().Uint8("channel", channel),
			log.Field().Uint8("note", note),
			log.Field().Uint8("velocity", velocity),
		)
		// Echo each note back as a short note on the same channel.
		if err := client.PlayTimedNote(note, velocity, 100*time.Millisecond, channel+1); err != nil {
			log.Warn("echo failed", log.Field().Error("error", err))
		}
	})
	client.OnControlChange(func(channel, controller, value uint8) {
		client.ReportValue(fmt.Sprintf("cc%d", controller), float64(value))
	})

	fmt.Println("Listening for MIDI... Press Ctrl+C to exit.")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
}
