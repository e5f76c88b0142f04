package session

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mohaweel/internal/domain"
	"mohaweel/internal/imagefile"
	"mohaweel/internal/messages"
)

type MockTransformer struct {
	mock.Mock
}

func (m *MockTransformer) Transform(ctx context.Context, img domain.EncodedImage, prompt string) (domain.EncodedImage, error) {
	args := m.Called(ctx, img, prompt)
	return args.Get(0).(domain.EncodedImage), args.Error(1)
}

// gatedTransformer blocks each call until the test answers it.
type gatedTransformer struct {
	started chan call
}

type call struct {
	prompt string
	reply  chan result
}

type result struct {
	img domain.EncodedImage
	err error
}

func newGatedTransformer() *gatedTransformer {
	return &gatedTransformer{started: make(chan call, 4)}
}

func (g *gatedTransformer) Transform(ctx context.Context, img domain.EncodedImage, prompt string) (domain.EncodedImage, error) {
	reply := make(chan result, 1)
	g.started <- call{prompt: prompt, reply: reply}
	r := <-reply
	return r.img, r.err
}

var (
	jpeg      = domain.EncodedImage{MIMEType: "image/jpeg", Data: []byte("jpeg-bytes")}
	otherJPEG = domain.EncodedImage{MIMEType: "image/jpeg", Data: []byte("other-bytes")}
	png       = domain.EncodedImage{MIMEType: "image/png", Data: []byte("png-bytes")}
	fixedNow  = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
)

func newController(t Transformer) *Controller {
	return NewController(t, WithClock(func() time.Time { return fixedNow }))
}

func runAsync(c *Controller) <-chan error {
	done := make(chan error, 1)
	go func() { done <- c.Generate(context.Background()) }()
	return done
}

func TestInitialStateIsIdle(t *testing.T) {
	c := newController(new(MockTransformer))
	st := c.Snapshot()
	assert.Equal(t, ModeIdle, st.Mode())
	assert.Nil(t, st.Image)
	assert.Empty(t, st.Prompt)
	assert.Nil(t, st.Err())
}

func TestGenerateWithoutImageFailsValidation(t *testing.T) {
	tr := new(MockTransformer)
	c := newController(tr)
	c.SetPrompt("add sunglasses")

	err := c.Generate(context.Background())

	require.ErrorIs(t, err, domain.ErrValidation)
	st := c.Snapshot()
	assert.Equal(t, ModeError, st.Mode())
	assert.Equal(t, domain.CodeNoImage, st.Err().Code)
	tr.AssertNotCalled(t, "Transform", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateWithBlankPromptFailsValidation(t *testing.T) {
	for _, prompt := range []string{"", " ", "\t\n  "} {
		tr := new(MockTransformer)
		c := newController(tr)
		c.SelectImage(jpeg)
		c.SetPrompt(prompt)

		err := c.Generate(context.Background())

		require.ErrorIs(t, err, domain.ErrValidation)
		assert.Equal(t, domain.CodeNoPrompt, c.Snapshot().Err().Code)
		tr.AssertNotCalled(t, "Transform", mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestGenerateSuccess(t *testing.T) {
	tr := new(MockTransformer)
	tr.On("Transform", mock.Anything, jpeg, "add sunglasses").Return(png, nil).Once()
	c := newController(tr)
	c.SelectImage(jpeg)
	c.SetPrompt("add sunglasses")

	require.NoError(t, c.Generate(context.Background()))

	st := c.Snapshot()
	res, ok := st.Result()
	require.True(t, ok)
	assert.Equal(t, ModeResult, st.Mode())
	assert.False(t, st.IsLoading())
	assert.Nil(t, st.Err())
	assert.Equal(t, png, res.Generated)
	assert.Equal(t, "image/png", res.Generated.MIMEType)
	assert.Equal(t, jpeg, res.Original)
	assert.Equal(t, "add sunglasses", res.Prompt)
	assert.Equal(t, fixedNow, res.CreatedAt)
	tr.AssertExpectations(t)
}

func TestGenerateUsesPromptAtCallTime(t *testing.T) {
	g := newGatedTransformer()
	c := newController(g)
	c.SelectImage(jpeg)
	c.SetPrompt("make it snow")

	done := runAsync(c)
	pending := <-g.started
	assert.Equal(t, "make it snow", pending.prompt)
	assert.True(t, c.Snapshot().IsLoading())

	c.SetPrompt("make it rain")
	assert.True(t, c.Snapshot().IsLoading(), "prompt edits do not affect an in-flight generation")
	pending.reply <- result{img: png}
	require.NoError(t, <-done)

	st := c.Snapshot()
	res, ok := st.Result()
	require.True(t, ok)
	assert.Equal(t, "make it snow", res.Prompt)
	assert.Equal(t, "make it rain", st.Prompt)
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{name: "refusal text", err: domain.Refused("Refused: policy X"), wantCode: domain.CodeRefused, wantMessage: "Refused: policy X"},
		{name: "no candidates", err: domain.Service(domain.CodeNoResponse), wantCode: domain.CodeNoResponse, wantMessage: "No response was received from the model."},
		{name: "credential", err: domain.Credential(errors.New("403")), wantCode: domain.CodeCredential, wantMessage: "API key error"},
		{name: "untyped error", err: errors.New("socket closed"), wantCode: domain.CodeTransport, wantMessage: "socket closed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := new(MockTransformer)
			tr.On("Transform", mock.Anything, mock.Anything, mock.Anything).Return(domain.EncodedImage{}, tc.err)
			c := newController(tr)
			c.SelectImage(jpeg)
			c.SetPrompt("edit")

			err := c.Generate(context.Background())
			require.Error(t, err)

			st := c.Snapshot()
			assert.Equal(t, ModeError, st.Mode())
			assert.False(t, st.IsLoading())
			require.NotNil(t, st.Err())
			assert.Equal(t, tc.wantCode, st.Err().Code)
			assert.Contains(t, messages.Render("en", st.Err()), tc.wantMessage)
			assert.Equal(t, &jpeg, st.Image, "failures leave the selection intact")
			assert.Equal(t, "edit", st.Prompt)
		})
	}
}

// seed drives a controller into each display mode. In loading mode it also
// returns the pending call and the channel Generate reports on.
func seed(t *testing.T, mode Mode) (*Controller, *call, <-chan error) {
	t.Helper()
	g := newGatedTransformer()
	c := newController(g)
	switch mode {
	case ModeIdle:
	case ModePreview:
		c.SelectImage(jpeg)
	case ModeError:
		c.SetPrompt("edit")
		_ = c.Generate(context.Background())
	case ModeResult:
		c.SelectImage(jpeg)
		c.SetPrompt("edit")
		done := runAsync(c)
		pending := <-g.started
		pending.reply <- result{img: png}
		require.NoError(t, <-done)
	case ModeLoading:
		c.SelectImage(jpeg)
		c.SetPrompt("edit")
		done := runAsync(c)
		pending := <-g.started
		require.Equal(t, ModeLoading, c.Snapshot().Mode())
		return c, &pending, done
	}
	require.Equal(t, mode, c.Snapshot().Mode())
	return c, nil, nil
}

func TestSelectImageClearsOutcomeFromAnyState(t *testing.T) {
	for _, mode := range []Mode{ModeIdle, ModePreview, ModeLoading, ModeError, ModeResult} {
		t.Run(string(mode), func(t *testing.T) {
			c, pending, done := seed(t, mode)

			st := c.SelectImage(otherJPEG)
			assert.Equal(t, ModePreview, st.Mode())
			assert.Equal(t, otherJPEG, *st.Image)
			assert.Nil(t, st.Err())
			_, ok := st.Result()
			assert.False(t, ok)

			if done != nil {
				pending.reply <- result{img: png}
				assert.ErrorIs(t, <-done, ErrStale)
				assert.Equal(t, ModePreview, c.Snapshot().Mode(), "stale response must not land")
			}
		})
	}
}

func TestResetFromAnyState(t *testing.T) {
	for _, mode := range []Mode{ModeIdle, ModePreview, ModeLoading, ModeError, ModeResult} {
		t.Run(string(mode), func(t *testing.T) {
			c, pending, done := seed(t, mode)

			st := c.Reset()
			want := State{Phase: Ready{}}
			assert.Equal(t, want, st)
			assert.Equal(t, ModeIdle, st.Mode())
			assert.False(t, st.IsLoading())

			if done != nil {
				pending.reply <- result{err: domain.Service(domain.CodeNoImageFound)}
				assert.ErrorIs(t, <-done, ErrStale)
				assert.Equal(t, want, c.Snapshot())
			}
		})
	}
}

func TestClearImageInvalidatesInFlight(t *testing.T) {
	c, pending, done := seed(t, ModeLoading)
	st := c.ClearImage()
	assert.Equal(t, ModeIdle, st.Mode())
	assert.Equal(t, "edit", st.Prompt)

	pending.reply <- result{img: png}
	assert.ErrorIs(t, <-done, ErrStale)
	assert.Equal(t, ModeIdle, c.Snapshot().Mode())
}

func TestNewerGenerateSupersedesOlder(t *testing.T) {
	g := newGatedTransformer()
	c := newController(g)
	c.SelectImage(jpeg)
	c.SetPrompt("first")
	first := runAsync(c)
	older := <-g.started

	c.SetPrompt("second")
	second := runAsync(c)
	newer := <-g.started
	require.Equal(t, "second", newer.prompt)

	newer.reply <- result{img: domain.EncodedImage{MIMEType: "image/png", Data: []byte("newer")}}
	require.NoError(t, <-second)

	// The older call answers last and must not overwrite the newer result.
	older.reply <- result{img: domain.EncodedImage{MIMEType: "image/png", Data: []byte("older")}}
	assert.ErrorIs(t, <-first, ErrStale)

	res, ok := c.Snapshot().Result()
	require.True(t, ok)
	assert.Equal(t, "second", res.Prompt)
	assert.Equal(t, "newer", string(res.Generated.Data))
}

func TestValidationFailureInvalidatesInFlight(t *testing.T) {
	c, pending, done := seed(t, ModeLoading)
	c.SetPrompt("  ")
	require.ErrorIs(t, c.Generate(context.Background()), domain.ErrValidation)

	pending.reply <- result{img: png}
	assert.ErrorIs(t, <-done, ErrStale)
	assert.Equal(t, domain.CodeNoPrompt, c.Snapshot().Err().Code)
}

func TestStartEntersLoadingBeforeCall(t *testing.T) {
	tr := new(MockTransformer)
	tr.On("Transform", mock.Anything, jpeg, "edit").Return(png, nil).Once()
	c := newController(tr)

	_, err := c.Start()
	require.ErrorIs(t, err, domain.ErrValidation)

	c.SelectImage(jpeg)
	c.SetPrompt("edit")
	run, err := c.Start()
	require.NoError(t, err)
	assert.Equal(t, ModeLoading, c.Snapshot().Mode())
	tr.AssertNotCalled(t, "Transform", mock.Anything, mock.Anything, mock.Anything)

	require.NoError(t, run(context.Background()))
	assert.Equal(t, ModeResult, c.Snapshot().Mode())
	tr.AssertExpectations(t)
}

func TestEndToEndTwoMegabyteJPEG(t *testing.T) {
	payload := bytes.Repeat([]byte{0xff, 0xd8}, 1024*1024)
	img, err := imagefile.Acquire(context.Background(), imagefile.File{
		Name:        "portrait.jpg",
		ContentType: "image/jpeg",
		Size:        int64(len(payload)),
		Body:        bytes.NewReader(payload),
	})
	require.NoError(t, err)

	tr := new(MockTransformer)
	tr.On("Transform", mock.Anything, img, "add sunglasses").Return(png, nil).Once()
	c := newController(tr)
	c.SelectImage(img)
	c.SetPrompt("add sunglasses")
	require.NoError(t, c.Generate(context.Background()))

	st := c.Snapshot()
	res, ok := st.Result()
	require.True(t, ok)
	assert.Equal(t, png, res.Generated)
	assert.False(t, st.IsLoading())
	assert.Nil(t, st.Err())
}

func TestEndToEndOversizeFileLeavesStateUntouched(t *testing.T) {
	c := newController(new(MockTransformer))
	c.SelectImage(jpeg)
	c.SetPrompt("keep me")
	before := c.Snapshot()

	_, err := imagefile.Acquire(context.Background(), imagefile.File{
		Name:        "huge.png",
		ContentType: "image/png",
		Size:        6 * 1024 * 1024,
		Body:        bytes.NewReader(make([]byte, 6*1024*1024)),
	})
	require.Error(t, err)
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.CodeTooLarge, de.Code)
	assert.NotEmpty(t, messages.Render("ar", err), "rejection must carry a user-facing message")
	assert.Equal(t, before, c.Snapshot())
}
