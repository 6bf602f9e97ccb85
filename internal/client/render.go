package client

import (
	"fmt"
	"io"
	"time"

	"github.com/tylerwon/go-chat-rooms/internal/proto"
)

// eraseInputLine moves the cursor up and clears the echoed input so only
// server-delivered frames occupy the scrollback.
const eraseInputLine = "\x1b[1A\x1b[2K"

func renderChat(w io.Writer, c *proto.Chat) {
	sent := time.Unix(int64(c.Timestamp), 0).Local()
	fmt.Fprintf(w, "(%02d:%02d) %s: %s\n", sent.Hour(), sent.Minute(), c.Name, c.Text)
}

func renderReply(w io.Writer, r *proto.Reply) {
	fmt.Fprintf(w, "** %s **\n", r.Reply)
}
