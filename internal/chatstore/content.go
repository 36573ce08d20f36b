package chatstore

import (
	"encoding/json"
	"fmt"

	"github.com/MrWong99/tiktalk/internal/correction"
)

// Role identifies who authored a message. It selects the concrete
// [Content] variant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	return r == RoleSystem || r == RoleUser || r == RoleAssistant
}

// Content is the role-specific payload of a message. The concrete types are
// [SystemContent], [UserContent] and [AssistantContent]; no other type
// implements it.
type Content interface {
	Role() Role
	content()
}

// SystemContent is the instruction that seeds a chat.
type SystemContent struct {
	Content string `json:"content"`
}

// UserContent is a learner turn: the full correction record of what they
// said.
type UserContent struct {
	correction.Record
}

// AssistantContent is a tutor reply.
type AssistantContent struct {
	Content string `json:"content"`
}

func (SystemContent) Role() Role    { return RoleSystem }
func (UserContent) Role() Role      { return RoleUser }
func (AssistantContent) Role() Role { return RoleAssistant }

func (SystemContent) content()    {}
func (UserContent) content()      {}
func (AssistantContent) content() {}

// EncodeContent serialises c as a JSON object carrying its role tag next to
// the variant's fields.
func EncodeContent(c Content) ([]byte, error) {
	var v any
	switch c := c.(type) {
	case SystemContent:
		v = struct {
			Role Role `json:"role"`
			SystemContent
		}{RoleSystem, c}
	case UserContent:
		v = struct {
			Role Role `json:"role"`
			UserContent
		}{RoleUser, c}
	case AssistantContent:
		v = struct {
			Role Role `json:"role"`
			AssistantContent
		}{RoleAssistant, c}
	default:
		return nil, fmt.Errorf("chatstore: unsupported content %T", c)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("chatstore: encode %s content: %w", c.Role(), err)
	}
	return data, nil
}

// DecodeContent parses a payload produced by [EncodeContent]. The payload's
// role tag must equal role.
func DecodeContent(role Role, data []byte) (Content, error) {
	var tag struct {
		Role Role `json:"role"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("chatstore: decode %s content: %w", role, err)
	}
	if tag.Role != role {
		return nil, fmt.Errorf("chatstore: content tagged %q stored as %q", string(tag.Role), string(role))
	}

	var (
		c   Content
		err error
	)
	switch role {
	case RoleSystem:
		var v SystemContent
		err = json.Unmarshal(data, &v)
		c = v
	case RoleUser:
		var v UserContent
		err = json.Unmarshal(data, &v)
		c = v
	case RoleAssistant:
		var v AssistantContent
		err = json.Unmarshal(data, &v)
		c = v
	default:
		return nil, fmt.Errorf("chatstore: unknown role %q", string(role))
	}
	if err != nil {
		return nil, fmt.Errorf("chatstore: decode %s content: %w", role, err)
	}
	return c, nil
}
