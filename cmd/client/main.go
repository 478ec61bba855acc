// Command client is a line-oriented terminal front end. It drives a
// controller over the HTTP gateway and prints every view to stdout.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vdavid/vmail/webclient/internal/config"
	"github.com/vdavid/vmail/webclient/internal/controller"
	"github.com/vdavid/vmail/webclient/internal/gateway"
	"github.com/vdavid/vmail/webclient/internal/models"
	"github.com/vdavid/vmail/webclient/internal/route"
	"github.com/vdavid/vmail/webclient/internal/view"
)

func main() {
	cfg, err := config.NewClientConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw := gateway.NewHTTPGateway(cfg.ServerURL, cfg.Token)
	ctl := controller.New(gw, view.NewTextRenderer(os.Stdout), controller.Options{
		PageSize: cfg.PageSize,
		Account:  cfg.Account,
	})

	if err := run(ctx, ctl, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("Client failed: %v", err)
	}
}

// dispatcher is the part of the controller the input loop needs.
type dispatcher interface {
	Run(ctx context.Context)
	Dispatch(cmd controller.Command) error
	Settle(ctx context.Context) error
}

// run starts ctl, opens the inbox and feeds it one command per input line
// until input ends, "quit" is read or ctx is canceled. When input ends it waits
// for outstanding requests so piped commands still print their results.
func run(ctx context.Context, ctl dispatcher, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go ctl.Run(ctx)

	if err := ctl.Dispatch(controller.Command{Type: controller.CommandNavigate, Fragment: route.InFolder(models.FolderInbox).String()}); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				_ = ctl.Settle(ctx)
				return nil
			}
			cmd, quit, err := parseLine(line)
			switch {
			case quit:
				return nil
			case err != nil:
				_, _ = fmt.Fprintf(out, "? %v\n", err)
			case cmd.Type != "":
				if err := ctl.Dispatch(cmd); err != nil {
					_, _ = fmt.Fprintf(out, "? %v\n", err)
				}
			}
		}
	}
}
