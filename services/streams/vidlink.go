package streams

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"flashplay/models"
)

// VidLink wraps stream lookups in an AES-256-CBC envelope: the TMDB id is
// encrypted to "ivhex:cipherhex", base64-wrapped into the path, and the reply
// comes back in the same iv:cipher format.
const (
	vidlinkAPIURL = "https://vidlink.pro/api/b"
	vidlinkOrigin = "https://vidlink.pro"
	vidlinkKeyHex = "2de6e6ea13a9df9503b11a6117fd7e51941e04a0c223dfeacfe8a1dbb6c52783"
)

type vidlinkClient struct {
	httpClient *http.Client
	apiURL     string
	key        []byte
}

func newVidlinkClient(httpClient *http.Client) *vidlinkClient {
	key, err := hex.DecodeString(vidlinkKeyHex)
	if err != nil {
		// The key is a compile-time constant; a decode failure is a build bug.
		panic(fmt.Sprintf("vidlink key: %v", err))
	}
	return &vidlinkClient{httpClient: httpClient, apiURL: vidlinkAPIURL, key: key[:32]}
}

// vidlinkStream mirrors the decrypted API payload.
type vidlinkStream struct {
	Stream struct {
		Playlist string `json:"playlist"`
		Captions []struct {
			Language string `json:"language"`
			URL      string `json:"url"`
			Type     string `json:"type"`
		} `json:"captions"`
	} `json:"stream"`
}

func (c *vidlinkClient) ExtractMovie(ctx context.Context, tmdbID string) (*models.StreamResponse, error) {
	encoded, err := c.encodeID(tmdbID)
	if err != nil {
		return nil, err
	}
	return c.fetch(ctx, fmt.Sprintf("%s/movie/%s", c.apiURL, encoded))
}

func (c *vidlinkClient) ExtractSeries(ctx context.Context, tmdbID string, season, episode int) (*models.StreamResponse, error) {
	encoded, err := c.encodeID(tmdbID)
	if err != nil {
		return nil, err
	}
	return c.fetch(ctx, fmt.Sprintf("%s/tv/%s/%d/%d", c.apiURL, encoded, season, episode))
}

func (c *vidlinkClient) fetch(ctx context.Context, apiURL string) (*models.StreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Referer", vidlinkOrigin+"/")
	req.Header.Set("Origin", vidlinkOrigin)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vidlink api error: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	plain, err := c.decrypt(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, fmt.Errorf("vidlink response decrypt: %w", err)
	}

	var data vidlinkStream
	if err := json.Unmarshal(plain, &data); err != nil {
		return nil, fmt.Errorf("vidlink response decode: %w", err)
	}
	if data.Stream.Playlist == "" {
		return nil, fmt.Errorf("vidlink response has no playlist")
	}

	out := &models.StreamResponse{
		Success: true,
		Sources: []models.StreamSource{{URL: data.Stream.Playlist, Quality: "auto", Type: "hls"}},
	}
	for _, caption := range data.Stream.Captions {
		out.Subtitles = append(out.Subtitles, models.Subtitle{Lang: caption.Language, URL: caption.URL, Type: caption.Type})
	}
	return out, nil
}

// encodeID encrypts the TMDB id and base64-wraps the iv:cipher envelope for
// use as a path segment.
func (c *vidlinkClient) encodeID(id string) (string, error) {
	envelope, err := c.encrypt([]byte(id))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString([]byte(envelope)), nil
}

func (c *vidlinkClient) encrypt(plain []byte) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	padded := pkcs7Pad(plain, aes.BlockSize)
	enc := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(enc, padded)
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(enc), nil
}

func (c *vidlinkClient) decrypt(envelope string) ([]byte, error) {
	ivHex, encHex, ok := strings.Cut(envelope, ":")
	if !ok {
		return nil, fmt.Errorf("malformed envelope")
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("malformed iv")
	}
	enc, err := hex.DecodeString(encHex)
	if err != nil || len(enc) == 0 || len(enc)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("malformed ciphertext")
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(enc))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, enc)
	return pkcs7Unpad(plain)
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	padded := make([]byte, len(b)+n)
	copy(padded, b)
	for i := len(b); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > len(b) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
