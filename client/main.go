package main

import (
	"bufio"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// lineConn is the client side of either transport.
type lineConn interface {
	Send(line string) error
	Recv() (string, error)
	Close() error
}

type tcpConn struct {
	conn   net.Conn
	reader *bufio.Reader
}

func (c *tcpConn) Send(line string) error {
	_, err := c.conn.Write([]byte(line + "\n"))
	return err
}

func (c *tcpConn) Recv() (string, error) {
	line, err := c.reader.ReadString('\n')
	return strings.TrimRight(line, "\r\n"), err
}

func (c *tcpConn) Close() error { return c.conn.Close() }

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Send(line string) error {
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (c *wsConn) Recv() (string, error) {
	_, data, err := c.conn.ReadMessage()
	return string(data), err
}

func (c *wsConn) Close() error {
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

// dial connects to host:port over TCP, or to a ws:// URL.
func dial(target string) (lineConn, error) {
	if strings.HasPrefix(target, "ws://") || strings.HasPrefix(target, "wss://") {
		c, _, err := websocket.DefaultDialer.Dial(target, nil)
		if err != nil {
			return nil, err
		}
		return &wsConn{conn: c}, nil
	}
	c, err := net.DialTimeout("tcp", target, 5*time.Second)
	if err != nil {
		return nil, err
	}
	return &tcpConn{conn: c, reader: bufio.NewReader(c)}, nil
}

func main() {
	target := "localhost:8080"
	if len(os.Args) > 1 {
		target = os.Args[1]
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	log.Printf("Connecting to %s", target)

	c, err := dial(target)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			line, err := c.Recv()
			if err != nil {
				log.Println("Connection closed:", err)
				return
			}
			log.Printf("<- %s", line)
		}
	}()

	log.Println("Commands: w/a/s/d, mover dx dy, tesouro, entrar, SAIR_SALA x y, ranking, sair")

	// stdin is read on its own goroutine so an interrupt is never stuck behind it
	input := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			input <- strings.TrimSpace(scanner.Text())
		}
		close(input)
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			c.Send("sair")
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case text, ok := <-input:
			if !ok {
				c.Send("sair")
				select {
				case <-done:
				case <-time.After(time.Second):
				}
				return
			}
			if text == "" {
				continue
			}
			if err := c.Send(text); err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}
