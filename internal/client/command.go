package client

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tylerwon/go-chat-rooms/internal/proto"
)

// parseCommand turns a "/..." input line into the frame to send. exit is set
// for /exit; a non-nil error is shown to the user locally and nothing is sent.
func parseCommand(line string) (msg proto.Message, exit bool, err error) {
	verb, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch verb {
	case "/name":
		if arg == "" {
			return nil, false, fmt.Errorf("usage: /name NAME")
		}
		if len(arg)+1 > proto.NameSizeLimit {
			return nil, false, fmt.Errorf("name too long (max %d bytes)", proto.NameSizeLimit-1)
		}
		return &proto.Name{Name: arg}, false, nil
	case "/join":
		if arg == "" {
			return nil, false, fmt.Errorf("usage: /join ROOM")
		}
		id, perr := strconv.ParseUint(arg, 10, 8)
		if perr != nil {
			return nil, false, fmt.Errorf("invalid room number %q", arg)
		}
		return &proto.Join{RoomID: uint8(id)}, false, nil
	case "/exit":
		return nil, true, nil
	default:
		return nil, false, fmt.Errorf("unknown command %s", verb)
	}
}
