package synthesis

import (
	"fmt"

	"virtual-tryon/internal/domain/model"
)

const basePrompt = `You are given two images. The first shows a person, the second shows a garment.
Produce one photorealistic image of the same person wearing the garment.
Keep the person's face, body shape, pose, skin tone and the background unchanged.
Match the garment's color, texture, pattern and logos exactly.
%s
Return only the edited image.`

var styleDirectives = map[model.Style]string{
	model.StyleUpper: "Replace only the upper-body clothing (tops, shirts, jackets). Leave trousers, skirts and shoes untouched.",
	model.StyleLower: "Replace only the lower-body clothing (trousers, skirts, shorts). Leave tops and shoes untouched.",
}

// BuildPrompt renders the instruction sent with both images for style.
func BuildPrompt(style model.Style) string {
	d, ok := styleDirectives[style]
	if !ok {
		d = styleDirectives[model.StyleUpper]
	}
	return fmt.Sprintf(basePrompt, d)
}
