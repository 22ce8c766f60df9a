package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const visionPrompt = "Transcribe every piece of text visible in this invoice " +
	"image. Output one text fragment per line, in reading order, left to " +
	"right within a row. Do not translate, summarize, or add commentary."

// VisionEngine sends the image to a multimodal chat-completions model and
// treats each line of the reply as a segment. The model reports no geometry,
// so segments carry no bounding boxes.
type VisionEngine struct {
	client *openai.Client
	model  string
}

func NewVisionEngine(apiKey, baseURL, model string) *VisionEngine {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &VisionEngine{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (e *VisionEngine) Name() string { return "vision" }

func (e *VisionEngine) Recognize(ctx context.Context, imagePath string) ([]Segment, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: dataURI(imagePath, data),
						},
					},
					{
						Type: openai.ChatMessagePartTypeText,
						Text: visionPrompt,
					},
				},
			},
		},
		MaxTokens: 4096,
	})
	if err != nil {
		return nil, fmt.Errorf("vision completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("vision model returned no choices")
	}

	return textSegments(resp.Choices[0].Message.Content), nil
}

func dataURI(path string, data []byte) string {
	mime := "image/png"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	case ".bmp":
		mime = "image/bmp"
	case ".tif", ".tiff":
		mime = "image/tiff"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
