package dispatcher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"HeadTurner/internal/entity"
)

// Key identifies a pose request by image content and angles.
type Key struct {
	ImageHash string
	Yaw       int
	Pitch     int
}

func NewKey(req entity.PoseRequest) Key {
	sum := sha256.Sum256(req.Image.Data)
	return Key{
		ImageHash: hex.EncodeToString(sum[:]),
		Yaw:       req.Yaw,
		Pitch:     req.Pitch,
	}
}

// String converts the key into the form used by stores and the flight group.
func (k Key) String() string {
	// pose:<SHA256_HEX>:<YAW>:<PITCH>
	return fmt.Sprintf("pose:%s:%d:%d", k.ImageHash, k.Yaw, k.Pitch)
}
