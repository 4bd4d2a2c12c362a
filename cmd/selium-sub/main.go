// Command selium-sub connects to a broker, subscribes to a topic, and
// prints each received message.
package main

import (
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
	topic := flag.String("topic", "", "topic to subscribe to, e.g. /acmeco/stocks")
	keepAlive := flag.Duration("keep-alive", 15*time.Second, "QUIC keep-alive interval")
	flag.Parse()

	if *topic == "" {
		fmt.Fprintln(os.Stderr, "selium-sub: -topic is required")
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

	sub, err := client.Subscriber[string](conn, *topic).WithDecoder(codec.String{}).Open(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	for {
		msg, err := sub.Next()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(msg)
	}
}
