package support

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/teavision/internal/server"
	"github.com/MeKo-Tech/teavision/internal/testutil"
)

// theAPIServerIsRunning starts the server with the toy model family.
func (testCtx *TestContext) theAPIServerIsRunning() error {
	return testCtx.StartServer(true, server.Config{})
}

func (testCtx *TestContext) theAPIServerIsRunningWithoutModels() error {
	return testCtx.StartServer(false, server.Config{})
}

func (testCtx *TestContext) theAPIServerIsRunningWithRateLimit(perMinute int) error {
	return testCtx.StartServer(true, server.Config{RateLimitEnabled: true, RequestsPerMinute: perMinute})
}

func (testCtx *TestContext) aUserExists(email, password string) error {
	_, err := testCtx.Store.Register(context.Background(), email, password, false)
	return err
}

func (testCtx *TestContext) anAdminExists(email, password string) error {
	_, err := testCtx.Store.Register(context.Background(), email, password, true)
	return err
}

func (testCtx *TestContext) iSetTheHeaderTo(name, value string) error {
	testCtx.Headers[name] = value
	return nil
}

// sendRequest performs a request and records the response.
func (testCtx *TestContext) sendRequest(method, path, contentType string, body io.Reader) error {
	req, err := http.NewRequestWithContext(context.Background(), method, testCtx.GetServerURL()+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range testCtx.Headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPHeaders = resp.Header
	testCtx.LastHTTPResponse, err = io.ReadAll(resp.Body)
	return err
}

func (testCtx *TestContext) iSendARequestTo(method, path string) error {
	return testCtx.sendRequest(method, path, "", nil)
}

func (testCtx *TestContext) iSendARequestWithJSON(method, path string, body *godog.DocString) error {
	if !json.Valid([]byte(body.Content)) {
		return fmt.Errorf("step body is not valid JSON: %s", body.Content)
	}
	return testCtx.sendRequest(method, path, "application/json", strings.NewReader(body.Content))
}

// imageFixture renders one of the named synthetic images.
func imageFixture(kind string) ([]byte, error) {
	var photo testutil.SamplePhoto
	switch kind {
	case "white":
		photo = testutil.DiskPhoto(32, 32, 0, 0, 0, testutil.White, testutil.White)
	case "brown":
		photo = testutil.DiskPhoto(32, 32, 0, 0, 0, testutil.TeaBrown, testutil.TeaBrown)
	case "sample":
		photo = testutil.DiskPhoto(200, 160, 100, 80, 50, testutil.TeaBrown, testutil.White)
	case "corrupt":
		return []byte("this is not an image"), nil
	default:
		return nil, fmt.Errorf("unknown image kind %q", kind)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, photo.Image()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// iUploadImages posts a multipart form built from a table with the columns
// field, name and kind.
func (testCtx *TestContext) iUploadImages(path string, table *godog.Table) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		if len(row.Cells) != 3 {
			return fmt.Errorf("row %d: want field, name and kind", i)
		}
		field, name, kind := row.Cells[0].Value, row.Cells[1].Value, row.Cells[2].Value
		data, err := imageFixture(kind)
		if err != nil {
			return err
		}
		part, err := mw.CreateFormFile(field, name)
		if err != nil {
			return err
		}
		if _, err := part.Write(data); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return testCtx.sendRequest(http.MethodPost, path, mw.FormDataContentType(), &body)
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("expected status %d, got %d: %s", code, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !bytes.Contains(testCtx.LastHTTPResponse, []byte(text)) {
		return fmt.Errorf("response does not contain %q: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldContain(name, text string) error {
	if got := testCtx.LastHTTPHeaders.Get(name); !strings.Contains(got, text) {
		return fmt.Errorf("header %s is %q, want it to contain %q", name, got, text)
	}
	return nil
}

// jsonField walks a dotted path such as "results.0.predicted_region".
func (testCtx *TestContext) jsonField(path string) (any, error) {
	var doc any
	if err := json.Unmarshal(testCtx.LastHTTPResponse, &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	cur := doc
	for _, key := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[key]
			if !ok {
				return nil, fmt.Errorf("field %q not found in %s", key, testCtx.LastHTTPResponse)
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %s", key, path)
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("cannot descend into %q of %s", key, path)
		}
	}
	return cur, nil
}

func (testCtx *TestContext) theJSONFieldShouldBe(path, want string) error {
	v, err := testCtx.jsonField(path)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("field %s is %q, want %q", path, got, want)
	}
	return nil
}

func (testCtx *TestContext) theJSONArrayShouldHaveItems(path string, n int) error {
	v, err := testCtx.jsonField(path)
	if err != nil {
		return err
	}
	items, ok := v.([]any)
	if !ok {
		return fmt.Errorf("field %s is not an array", path)
	}
	if len(items) != n {
		return fmt.Errorf("field %s has %d items, want %d", path, len(items), n)
	}
	return nil
}

func (testCtx *TestContext) theCSVResponseShouldHaveRows(n int) error {
	records, err := csv.NewReader(bytes.NewReader(testCtx.LastHTTPResponse)).ReadAll()
	if err != nil {
		return fmt.Errorf("response is not CSV: %w", err)
	}
	if len(records)-1 != n {
		return fmt.Errorf("CSV has %d data rows, want %d", len(records)-1, n)
	}
	return nil
}

// RegisterSteps registers every step of the suite.
func (testCtx *TestContext) RegisterSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the API server is running$`, testCtx.theAPIServerIsRunning)
	sc.Step(`^the API server is running without models$`, testCtx.theAPIServerIsRunningWithoutModels)
	sc.Step(`^the API server is running with a limit of (\d+) requests per minute$`,
		testCtx.theAPIServerIsRunningWithRateLimit)
	sc.Step(`^a user "([^"]*)" with password "([^"]*)" exists$`, testCtx.aUserExists)
	sc.Step(`^an admin "([^"]*)" with password "([^"]*)" exists$`, testCtx.anAdminExists)
	sc.Step(`^I set the header "([^"]*)" to "([^"]*)"$`, testCtx.iSetTheHeaderTo)

	sc.Step(`^I send a (GET|POST|PUT|DELETE) request to "([^"]*)"$`, testCtx.iSendARequestTo)
	sc.Step(`^I send a (GET|POST|PUT|DELETE) request to "([^"]*)" with JSON:$`, testCtx.iSendARequestWithJSON)
	sc.Step(`^I upload the following images to "([^"]*)":$`, testCtx.iUploadImages)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response header "([^"]*)" should contain "([^"]*)"$`, testCtx.theResponseHeaderShouldContain)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONFieldShouldBe)
	sc.Step(`^the JSON field "([^"]*)" should have (\d+) items$`, testCtx.theJSONArrayShouldHaveItems)
	sc.Step(`^the CSV response should have (\d+) rows$`, testCtx.theCSVResponseShouldHaveRows)
}
