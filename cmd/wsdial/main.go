// wsdial is a CLI tool for exercising wsgate endpoints.
// It dials a gateway, prints the negotiated session details, then pipes
// stdin lines to the server and received frames to stdout.
//
// Examples:
//
//	wsdial -url ws://localhost:8080/ws
//	wsdial -url wss://gateway.example/ws -protocol chat.v2,chat.v1 -token secret
//	wsdial -url wss://gateway.example/ws -chrome -socks5 127.0.0.1:1080
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"wsgate/internal/transport"
)

// ANSI color codes
var (
	colorReset = "\033[0m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
	colorGray  = "\033[90m"
	colorRed   = "\033[31m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorGreen, colorCyan, colorGray, colorRed = "", "", "", "", ""
}

func main() {
	var (
		rawURL    = flag.String("url", "", "gateway endpoint (ws:// or wss://)")
		protocols = flag.String("protocol", "", "comma-separated subprotocol offer, in preference order")
		origin    = flag.String("origin", "", "Origin header to present")
		token     = flag.String("token", "", "bearer token for the gateway")
		chrome    = flag.Bool("chrome", false, "present a Chrome TLS fingerprint (wss only)")
		socks5    = flag.String("socks5", "", "SOCKS5 proxy address (host:port)")
		compress  = flag.Bool("compress", false, "offer permessage-deflate")
		timeout   = flag.Duration("timeout", 30*time.Second, "handshake timeout")
		quiet     = flag.Bool("quiet", false, "suppress connection details")
		noColor   = flag.Bool("no-color", false, "disable colored output")
	)
	flag.Parse()

	if *noColor {
		disableColors()
	}
	if *rawURL == "" {
		flag.Usage()
		os.Exit(2)
	}
	if _, err := url.Parse(*rawURL); err != nil {
		fail("invalid url: %v", err)
	}

	var offer []string
	if *protocols != "" {
		offer = strings.Split(*protocols, ",")
	}

	dialer, err := transport.NewDialer(transport.Options{
		HandshakeTimeout:  *timeout,
		Subprotocols:      offer,
		EnableCompression: *compress,
		Chrome:            *chrome,
		SOCKS5:            *socks5,
	})
	if err != nil {
		fail("building dialer: %v", err)
	}

	header := http.Header{}
	if *origin != "" {
		header.Set("Origin", *origin)
	}
	if *token != "" {
		header.Set("Authorization", "Bearer "+*token)
	}

	conn, resp, err := dialer.Dial(*rawURL, header)
	if err != nil {
		if resp != nil {
			fail("dial failed: %v (status %s)", err, resp.Status)
		}
		fail("dial failed: %v", err)
	}
	defer conn.Close()

	if !*quiet {
		fmt.Printf("%sconnected%s %s\n", colorGreen, colorReset, *rawURL)
		if proto := conn.Subprotocol(); proto != "" {
			fmt.Printf("%ssubprotocol%s %s\n", colorGray, colorReset, proto)
		}
	}

	// Reader: server frames to stdout
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					fmt.Fprintf(os.Stderr, "%sread error:%s %v\n", colorRed, colorReset, err)
				}
				return
			}
			fmt.Printf("%s<%s %s\n", colorCyan, colorReset, data)
		}
	}()

	// Writer: stdin lines to server
	input := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			input <- scanner.Text()
		}
		close(input)
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	for {
		select {
		case <-done:
			return
		case line, ok := <-input:
			if !ok {
				closeGracefully(conn, done)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				fail("write failed: %v", err)
			}
		case <-interrupt:
			closeGracefully(conn, done)
			return
		}
	}
}

// closeGracefully sends a close frame and waits briefly for the server's
// close response.
func closeGracefully(conn *websocket.Conn, done chan struct{}) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"error:"+colorReset+" "+format+"\n", args...)
	os.Exit(1)
}
