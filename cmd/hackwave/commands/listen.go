package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hackwave/hackwave/internal/session"
	"github.com/hackwave/hackwave/pkg/types"
)

var listenTypes []string

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Tail live platform events",
	Long: `Listen connects the push channel and prints incoming events until
interrupted. By default every pass-through event type is printed; --type
narrows the subscription.`,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().StringSliceVar(&listenTypes, "type", nil, "Event types to print (repeatable; default: common feature events)")
}

// Feature event types the platform currently pushes. The stream passes any
// type through; this list only seeds the default subscription.
var defaultListenTypes = []string{
	"chat.message",
	"notification.arrived",
	"qr.pairing",
	"team.updated",
	"submission.judged",
}

func runListen(cmd *cobra.Command, args []string) error {
	controller, err := newController()
	if err != nil {
		return err
	}
	ctx := context.Background()

	controller.Start(ctx, bootstrapFromEnv())
	switch controller.Status() {
	case session.StatusAuthenticated:
	case session.StatusSuspended:
		return fmt.Errorf("account suspended: %s", controller.SuspensionReason())
	default:
		return fmt.Errorf("not signed in; run 'hackwave login' first")
	}

	subscribed := listenTypes
	if len(subscribed) == 0 {
		subscribed = defaultListenTypes
	}

	handler := func(ev types.StreamEvent) {
		green.Printf("%s ", ev.Type)
		fmt.Println(string(ev.Data))
	}
	for _, eventType := range subscribed {
		unsub := controller.Router().Subscribe(eventType, handler)
		defer unsub()
	}

	green.Printf("Listening as %s (ctrl-c to stop)\n", controller.User().Email)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	controller.Close()
	return nil
}
