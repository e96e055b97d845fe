package submit

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolioHub/internal/errcode"
	"portfolioHub/internal/form"
	"portfolioHub/internal/portfolioapi"
)

type fakeService struct {
	createCalls int
	updateCalls int
	userID      string
	err         error
	fields      []form.Field
	fileBody    string
	hadFile     bool
}

func (s *fakeService) record(fields []form.Field, file *form.FilePart) {
	s.fields = fields
	s.hadFile = file != nil
	if file != nil {
		b, _ := io.ReadAll(file.Body)
		s.fileBody = string(b)
	}
}

func (s *fakeService) Create(ctx context.Context, token string, fields []form.Field, file *form.FilePart) (string, error) {
	s.createCalls++
	s.record(fields, file)
	return s.userID, s.err
}

func (s *fakeService) Update(ctx context.Context, token string, fields []form.Field, file *form.FilePart) error {
	s.updateCalls++
	s.record(fields, file)
	return s.err
}

type fakeOpener struct {
	body   string
	err    error
	closed bool
}

type trackedBody struct {
	io.Reader
	o *fakeOpener
}

func (b trackedBody) Close() error { b.o.closed = true; return nil }

func (o *fakeOpener) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if o.err != nil {
		return nil, o.err
	}
	return trackedBody{Reader: strings.NewReader(o.body), o: o}, nil
}

func validForm(t *testing.T) *form.Form {
	t.Helper()
	f := form.NewForm()
	require.NoError(t, f.SetField(form.FieldTitle, "Jane Doe"))
	return f
}

func TestCreateSuccessRedirectsToPublicPage(t *testing.T) {
	svc := &fakeService{userID: "u42"}
	var observed []string
	p := NewPipeline(svc, nil, nil, WithObserver(func(mode string, ok bool) {
		observed = append(observed, mode)
	}))

	out := p.Submit(context.Background(), "tok", validForm(t), ModeCreate)

	assert.Equal(t, Outcome{OK: true, Code: errcode.OK, Message: MsgCreated, UserID: "u42", Redirect: "/portfolio/public/u42"}, out)
	assert.Equal(t, 1, svc.createCalls)
	assert.Equal(t, 0, svc.updateCalls)
	assert.False(t, svc.hadFile)
	assert.Equal(t, []string{"create"}, observed)
}

func TestUpdateOmitsFileWhenNoAttachment(t *testing.T) {
	svc := &fakeService{}
	p := NewPipeline(svc, &fakeOpener{}, nil)
	f := validForm(t)
	f.RemoteUser = "u7"

	out := p.Submit(context.Background(), "tok", f, ModeUpdate)

	assert.True(t, out.OK)
	assert.Equal(t, "/portfolio/public/u7", out.Redirect)
	assert.Equal(t, 1, svc.updateCalls)
	assert.False(t, svc.hadFile)
}

func TestAttachmentIsStreamedAndClosed(t *testing.T) {
	svc := &fakeService{userID: "u1"}
	opener := &fakeOpener{body: "%PDF-1.7"}
	p := NewPipeline(svc, opener, nil)
	f := validForm(t)
	f.SetAttachment(&form.Attachment{ObjectKey: "attachments/s/1.pdf", Filename: "cv.pdf", ContentType: "application/pdf"})

	out := p.Submit(context.Background(), "tok", f, ModeCreate)

	require.True(t, out.OK)
	assert.True(t, svc.hadFile)
	assert.Equal(t, "%PDF-1.7", svc.fileBody)
	assert.True(t, opener.closed)
}

func TestFailureMessages(t *testing.T) {
	tests := []struct {
		name     string
		mode     Mode
		err      error
		wantCode int
		wantMsg  string
	}{
		{"server message", ModeCreate, &portfolioapi.APIError{Status: 400, Message: "Portfolio already exists"}, errcode.UpstreamRejected, "Portfolio already exists"},
		{"generic create", ModeCreate, &portfolioapi.APIError{Status: 500}, errcode.UpstreamRejected, MsgCreateFailed},
		{"generic update", ModeUpdate, errors.New("connection reset"), errcode.UpstreamUnavailable, MsgUpdateFailed},
		{"unauthorized", ModeUpdate, portfolioapi.ErrUnauthorized, errcode.Unauthorized, MsgSessionEnded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{err: tt.err}
			p := NewPipeline(svc, nil, nil)

			out := p.Submit(context.Background(), "tok", validForm(t), tt.mode)

			assert.False(t, out.OK)
			assert.Equal(t, tt.wantCode, out.Code)
			assert.Equal(t, tt.wantMsg, out.Message)
			assert.Equal(t, 1, svc.createCalls+svc.updateCalls, "exactly one call, no retries")
		})
	}
}

func TestUnauthorizedRedirectsToLogin(t *testing.T) {
	p := NewPipeline(&fakeService{err: portfolioapi.ErrUnauthorized}, nil, nil)
	out := p.Submit(context.Background(), "tok", validForm(t), ModeCreate)
	assert.Equal(t, LoginPath, out.Redirect)
}

func TestFailureLeavesFormUntouched(t *testing.T) {
	svc := &fakeService{err: errors.New("boom")}
	p := NewPipeline(svc, nil, nil)
	f := validForm(t)
	before := f.Values()

	p.Submit(context.Background(), "tok", f, ModeCreate)

	assert.Equal(t, before, f.Values())
}

func TestAttachmentOpenFailureSkipsCall(t *testing.T) {
	svc := &fakeService{}
	p := NewPipeline(svc, &fakeOpener{err: errors.New("no such key")}, nil)
	f := validForm(t)
	f.SetAttachment(&form.Attachment{ObjectKey: "gone"})

	out := p.Submit(context.Background(), "tok", f, ModeUpdate)

	assert.False(t, out.OK)
	assert.Equal(t, MsgUpdateFailed, out.Message)
	assert.Equal(t, 0, svc.updateCalls)
}

func TestWireCompatibilityOption(t *testing.T) {
	svc := &fakeService{}
	p := NewPipeline(svc, nil, nil, WithEncodeOptions(form.EncodeOptions{WireCompatible: false}))
	f := validForm(t)
	require.NoError(t, f.UpdateEntryField(form.GroupHistory, 0, form.FieldIsCurrentEmployee, "true"))

	p.Submit(context.Background(), "tok", f, ModeCreate)

	for _, field := range svc.fields {
		assert.NotEqual(t, "professionalHistory[0][yearOfLeaving]", field.Name)
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("update")
	require.NoError(t, err)
	assert.Equal(t, ModeUpdate, m)
	_, err = ParseMode("delete")
	assert.Error(t, err)
}

func TestNilFormFails(t *testing.T) {
	svc := &fakeService{}
	out := NewPipeline(svc, nil, nil).Submit(context.Background(), "tok", nil, ModeCreate)
	assert.False(t, out.OK)
	assert.Equal(t, 0, svc.createCalls)
}
