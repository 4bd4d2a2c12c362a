// Command selium-bench drives a throughput benchmark against a running
// broker: one subscriber and N concurrent publishers on the same topic.
// It spawns the subscriber, spawns -streams publishers each sending
// -messages/-streams messages, waits for all of them and for the
// subscriber to see -messages total, then reports elapsed time and
// messages/sec.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/selium-io/selium/client"
	"github.com/selium-io/selium/codec"
)

const topic = "/acmeco/stocks"

func main() {
	addr := flag.String("addr", "127.0.0.1:7001", "broker address")
	ca := flag.String("ca", "", "CA certificate file trusted instead of the system pool")
	numMessages := flag.Int("messages", 10000, "total messages to publish")
	numStreams := flag.Int("streams", 4, "number of concurrent publisher streams")
	flag.Parse()

	if err := run(*addr, *ca, *numMessages, *numStreams); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(addr, ca string, numMessages, numStreams int) error {
	ctx := context.Background()

	conn, err := client.NewClientBuilder().WithCertificateAuthority(ca).Connect(ctx, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub, err := client.Subscriber[string](conn, topic).WithDecoder(codec.String{}).Open(ctx)
	if err != nil {
		return fmt.Errorf("selium-bench: open subscriber: %w", err)
	}

	const message = "Hello, world!"

	var wg sync.WaitGroup
	wg.Add(numStreams)
	for i := 0; i < numStreams; i++ {
		go func() {
			defer wg.Done()
			pub, err := client.Publisher[string](conn, topic).WithEncoder(codec.String{}).Open(ctx)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return
			}
			for n := 0; n < numMessages/numStreams; n++ {
				if err := pub.Send(message); err != nil {
					fmt.Fprintln(os.Stderr, err)
					return
				}
			}
			_ = pub.Finish()
		}()
	}

	received := 0
	recvDone := make(chan struct{})
	go func() {
		defer close(recvDone)
		for received < numMessages {
			if _, err := sub.Next(); err != nil {
				fmt.Fprintln(os.Stderr, err)
				return
			}
			received++
		}
	}()

	start := time.Now()
	wg.Wait()
	<-recvDone
	elapsed := time.Since(start)

	rate := float64(numMessages) / elapsed.Seconds()
	fmt.Printf("%d messages in %s (%.0f msg/s), %d streams\n", numMessages, elapsed, rate, numStreams)
	return nil
}
