package agent

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/BaSui01/fluxagent/types"
)

// Capability names.
const (
	CapabilityGenerateImage = "generateImage"
	CapabilityHelp          = "help"
)

// DefaultFilename is used when a caller does not name the output file.
const DefaultFilename = "generated_image.png"

// GenerateImageInput is the argument set of generateImage.
type GenerateImageInput struct {
	Prompt      string `json:"prompt"`
	WorkspaceID int    `json:"workspaceId"`
	Filename    string `json:"filename"`
}

// Validate implements Input.
func (in *GenerateImageInput) Validate() error {
	if strings.TrimSpace(in.Prompt) == "" {
		return fmt.Errorf("prompt must not be empty")
	}
	if in.WorkspaceID < 0 {
		return fmt.Errorf("workspaceId must not be negative")
	}
	if in.Filename == "" {
		in.Filename = DefaultFilename
	}
	if path.Base(in.Filename) != in.Filename || strings.ContainsAny(in.Filename, `\`) || in.Filename == "." || in.Filename == ".." {
		return fmt.Errorf("filename must be a plain file name, got %q", in.Filename)
	}
	return nil
}

// HelpInput takes no arguments.
type HelpInput struct{}

func (*HelpInput) Validate() error { return nil }

// GenerateImageSchema describes generateImage arguments.
func GenerateImageSchema() *types.JSONSchema {
	return types.NewObjectSchema().
		AddProperty("prompt", types.NewStringSchema().
			WithMinLength(1).
			WithDescription("Detailed description of the image to generate")).
		AddProperty("workspaceId", types.NewIntegerSchema().
			WithMinimum(0).
			WithDescription("Workspace ID to upload the image to")).
		AddProperty("filename", types.NewStringSchema().
			WithMinLength(1).
			WithDefault(DefaultFilename).
			WithDescription("File name used for the stored image")).
		AddRequired("prompt").
		Closed()
}

// HelpText lists example prompts and usage tips.
const HelpText = `
Example prompts:
1. "A majestic ancient library at dusk, illuminated by warm golden chandeliers..."
2. "A futuristic cityscape with flying cars and neon lights..."
3. "A serene mountain landscape with a crystal clear lake..."

Usage:
- Provide detailed descriptions including style, lighting, and atmosphere
- Be specific about important elements you want in the image
- You can specify artistic styles like "hyperrealistic", "cinematic", "octane render"
`

func (s *Service) registerCapabilities() error {
	if err := Register(s.registry, CapabilityGenerateImage, CapabilityOptions{
		Description: "Generates an image based on a text prompt using FLUX.1-schnell model",
		Parameters:  GenerateImageSchema(),
	}, func(ctx context.Context, in *GenerateImageInput) (string, error) {
		res, err := s.Generate(ctx, *in)
		if err != nil {
			return "", err
		}
		return res.Message, nil
	}); err != nil {
		return err
	}

	return Register(s.registry, CapabilityHelp, CapabilityOptions{
		Description: "Shows example prompts and usage instructions",
		Parameters:  types.NewObjectSchema().Closed(),
	}, func(ctx context.Context, in *HelpInput) (string, error) {
		return HelpText, nil
	})
}
