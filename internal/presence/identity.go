package presence

import (
	"math/rand/v2"

	"github.com/google/uuid"
)

// Palette holds the cursor colors handed out when none is configured.
var Palette = []string{
	"#FF38D1",
	"#8263FF",
	"#0095FF",
	"#00B874",
	"#FF3168",
	"#FFAB03",
}

const DefaultName = "visitor"

// NewID returns a random (v4) participant id.
func NewID() string {
	return uuid.NewString()
}

func RandomColor() string {
	return Palette[rand.IntN(len(Palette))]
}
