// Command selium-pub connects to a broker and publishes a single UTF-8
// message, or a stream of stdin lines with -stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/selium-io/selium/client"
	"github.com/selium-io/selium/codec"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7001", "broker address")
	ca := flag.String("ca", "", "CA certificate file trusted instead of the system pool")
	topic := flag.String("topic", "", "topic to publish on, e.g. /acmeco/stocks")
	keepAlive := flag.Duration("keep-alive", 15*time.Second, "QUIC keep-alive interval")
	useStdin := flag.Bool("stdin", false, "publish one message per line of stdin instead of -message")
	message := flag.String("message", "", "message to publish")
	flag.Parse()

	if *topic == "" {
		fmt.Fprintln(os.Stderr, "selium-pub: -topic is required")
		os.Exit(1)
	}

	ctx := context.Background()

	conn, err := client.NewClientBuilder().
		KeepAlive(*keepAlive).
		WithCertificateAuthority(*ca).
		Connect(ctx, *addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer conn.Close()

	pub, err := client.Publisher[string](conn, *topic).WithEncoder(codec.String{}).Open(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *useStdin {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if err := pub.Send(scanner.Text()); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		}
	} else {
		if err := pub.Send(*message); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	if err := pub.Finish(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
