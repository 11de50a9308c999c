// Package prompt turns a requested head pose into an editing instruction
// for an image model.
//
// Yaw follows the subject's own frame: a positive yaw turns the head to the
// subject's right, which appears on the viewer's left in an unmirrored
// photo. Pitch is positive upward.
package prompt

import (
	"fmt"
	"strings"
)

const (
	MinYaw   = -45
	MaxYaw   = 45
	MinPitch = -30
	MaxPitch = 30

	// DeadZone is the largest absolute angle still treated as neutral.
	DeadZone = 5
)

type Zone string

const (
	ZoneNegative Zone = "negative"
	ZoneNeutral  Zone = "neutral"
	ZonePositive Zone = "positive"
)

const IdentityClause = "-   **Preserve Identity:** The subject's facial identity, features, hair, and expression must be perfectly preserved."

const persona = "You are an expert AI photo editor. Your task is to regenerate the provided image, changing only the head pose of the main subject."

var rules = []string{
	IdentityClause,
	"-   **Maintain Consistency:** The background, clothing, lighting, shadows, and overall image style must remain identical.",
	"-   **Single Change Only:** Do not add, remove, or alter any other elements. Only the head pose should change.",
	"-   **Output:** The output must be only the final image file. Do not output any text or markdown.",
}

func Classify(angle int) Zone {
	switch {
	case angle > DeadZone:
		return ZonePositive
	case angle < -DeadZone:
		return ZoneNegative
	default:
		return ZoneNeutral
	}
}

func YawPhrase(yaw int) string {
	switch Classify(yaw) {
	case ZonePositive:
		return fmt.Sprintf("%d degrees to the subject's right", abs(yaw))
	case ZoneNegative:
		return fmt.Sprintf("%d degrees to the subject's left", abs(yaw))
	default:
		return "forward"
	}
}

func PitchPhrase(pitch int) string {
	switch Classify(pitch) {
	case ZonePositive:
		return fmt.Sprintf("%d degrees upward", abs(pitch))
	case ZoneNegative:
		return fmt.Sprintf("%d degrees downward", abs(pitch))
	default:
		return "level"
	}
}

// Compile returns the full instruction for the given pose. The output
// depends only on the two angles.
func Compile(yaw, pitch int) string {
	var b strings.Builder

	b.WriteString(persona)
	b.WriteString("\n\n**Instructions:**\n")
	b.WriteString("1.  Analyze the original image to understand the subject's face, features, lighting, and background.\n")
	fmt.Fprintf(&b, "2.  Regenerate the image, adjusting the subject's head to be turned %s and tilted %s.\n",
		YawPhrase(yaw), PitchPhrase(pitch))
	b.WriteString("\n**Strict Rules:**\n")
	b.WriteString(strings.Join(rules, "\n"))

	return b.String()
}

// InRange reports whether the pose lies inside the slider domain.
func InRange(yaw, pitch int) bool {
	return yaw >= MinYaw && yaw <= MaxYaw && pitch >= MinPitch && pitch <= MaxPitch
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
