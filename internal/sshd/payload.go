package sshd

import (
	"fmt"

	"golang.org/x/crypto/ssh"
)

// PTYRequest is the payload of a "pty-req" channel request
// (RFC 4254 section 6.2).
type PTYRequest struct {
	Term     string
	Columns  uint32
	Rows     uint32
	WidthPx  uint32
	HeightPx uint32
	Modes    string
}

// ParsePTYRequest decodes a "pty-req" payload.
func ParsePTYRequest(payload []byte) (PTYRequest, error) {
	var req PTYRequest
	if err := ssh.Unmarshal(payload, &req); err != nil {
		return PTYRequest{}, fmt.Errorf("pty-req payload: %w", err)
	}
	return req, nil
}

// ParseExec decodes the command of an "exec" payload.
func ParseExec(payload []byte) (string, error) {
	var msg struct{ Command string }
	if err := ssh.Unmarshal(payload, &msg); err != nil {
		return "", fmt.Errorf("exec payload: %w", err)
	}
	return msg.Command, nil
}

// ExitStatus encodes the payload of an "exit-status" request.
func ExitStatus(code uint32) []byte {
	return ssh.Marshal(struct{ Status uint32 }{code})
}

// SendExitStatus tells the client how the "command" ended.
func SendExitStatus(ch ssh.Channel, code uint32) error {
	_, err := ch.SendRequest("exit-status", false, ExitStatus(code))
	return err
}
