// network/connection.go
package network

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout  = 5 * time.Second
	maxLineLength = 4096
)

var ErrLineTooLong = errors.New("line too long")

// Connection is one client transport carrying newline-free text lines.
type Connection interface {
	Send(line string) error
	ReadLine() (string, error)
	Close() error
	RemoteAddr() net.Addr
	SetHeartbeat(interval time.Duration)
}

// TCPConnection speaks newline-delimited text over a raw socket.
type TCPConnection struct {
	conn      net.Conn
	scanner   *bufio.Scanner
	sendMutex sync.Mutex
	heartbeat time.Duration
}

func NewTCPConnection(conn net.Conn) *TCPConnection {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 512), maxLineLength)
	return &TCPConnection{conn: conn, scanner: scanner}
}

func (c *TCPConnection) Send(line string) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := c.conn.Write([]byte(line + "\n"))
	return err
}

// ReadLine blocks for the next line. A clean EOF is reported as io.EOF.
func (c *TCPConnection) ReadLine() (string, error) {
	if c.heartbeat > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.heartbeat * 2))
	}
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				return "", ErrLineTooLong
			}
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimRight(c.scanner.Text(), "\r"), nil
}

func (c *TCPConnection) SetHeartbeat(interval time.Duration) {
	c.heartbeat = interval
}

func (c *TCPConnection) Close() error {
	return c.conn.Close()
}

func (c *TCPConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// WSConnection carries one command line per websocket text frame.
type WSConnection struct {
	conn      *websocket.Conn
	sendMutex sync.Mutex
	heartbeat time.Duration
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	conn.SetReadLimit(maxLineLength)
	return &WSConnection{conn: conn}
}

func (c *WSConnection) Send(line string) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (c *WSConnection) ReadLine() (string, error) {
	if c.heartbeat > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.heartbeat * 2))
	}
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return "", io.EOF
			}
			return "", err
		}
		if msgType == websocket.TextMessage {
			return strings.TrimRight(string(data), "\r\n"), nil
		}
	}
}

func (c *WSConnection) SetHeartbeat(interval time.Duration) {
	c.heartbeat = interval
}

func (c *WSConnection) Close() error {
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
