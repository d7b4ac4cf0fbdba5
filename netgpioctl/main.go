// netgpioctl sends a message to a running netgpiod.
//
//	netgpioctl '10101010 01100110'
//	echo 101 | netgpioctl -
//	netgpioctl -read
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func must(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("netgpioctl failed")
	}
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	addr := flag.String("addr", "http://127.0.0.1:1225", "netgpiod address")
	read := flag.Bool("read", false, "Read from the device instead of writing")
	count := flag.Int("count", 8, "Bytes to request with -read")
	flag.Parse()

	client := &http.Client{}

	if *read {
		must(readDevice(client, *addr, *count))
		return
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: netgpioctl [-addr URL] MESSAGE|-")
		os.Exit(2)
	}

	var body io.Reader = strings.NewReader(flag.Arg(0))
	if flag.Arg(0) == "-" {
		data, err := io.ReadAll(os.Stdin)
		must(err)
		body = bytes.NewReader(data)
	}

	must(writeDevice(client, *addr, body))
}

func writeDevice(client *http.Client, addr string, body io.Reader) error {
	start := time.Now()
	resp, err := client.Post(addr+"/api/message", "text/plain", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("write rejected (%s): %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	log.Info().
		Str("bytes", resp.Header.Get("X-Bytes-Written")).
		Dur("took", time.Since(start)).
		Msg("Message played")
	return nil
}

func readDevice(client *http.Client, addr string, count int) error {
	resp, err := client.Get(fmt.Sprintf("%s/api/message?count=%d", addr, count))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	log.Info().
		Str("reported", resp.Header.Get("X-Bytes-Read")).
		Int("received", len(data)).
		Msg("Read complete")
	return nil
}
