package actor

import (
	"strings"

	"github.com/bwmarrin/snowflake"
)

// Kind discriminates who performed a mutation.
type Kind string

const (
	KindHuman          Kind = "human"
	KindExternalSystem Kind = "external_system"
)

// Actor identifies the originator of a mutation. External pushes carry the
// distinguished external-system identity instead of a hardcoded admin user.
type Actor struct {
	Kind   Kind
	UserID snowflake.ID
}

func Human(userID snowflake.ID) Actor {
	return Actor{Kind: KindHuman, UserID: userID}
}

func ExternalSystem() Actor {
	return Actor{Kind: KindExternalSystem}
}

func (a Actor) IsExternal() bool {
	return a.Kind == KindExternalSystem
}

// String renders a stable identifier for audit rows: "human:<id>" or
// "external_system".
func (a Actor) String() string {
	if a.Kind == KindHuman {
		return "human:" + a.UserID.String()
	}
	return string(KindExternalSystem)
}

// Parse reverses String. Unknown values map to the external system so that
// replayed audit rows never gain a fabricated human identity.
func Parse(raw string) Actor {
	raw = strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(raw, "human:"); ok {
		if id, err := snowflake.ParseString(rest); err == nil {
			return Human(id)
		}
	}
	return ExternalSystem()
}
