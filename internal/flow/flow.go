package flow

import (
	"bytes"
	"context"
	"image"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/Brownie44l1/pneumonia-api/internal/apperr"
	"github.com/Brownie44l1/pneumonia-api/internal/compare"
	"github.com/Brownie44l1/pneumonia-api/internal/diagnosis"
	"github.com/Brownie44l1/pneumonia-api/internal/logging"
	"github.com/Brownie44l1/pneumonia-api/internal/preprocess"
	"github.com/Brownie44l1/pneumonia-api/internal/reference"
	"github.com/Brownie44l1/pneumonia-api/internal/upload"
)

type State string

const (
	StateIdle               State = "idle"
	StateFileReceived       State = "file_received"
	StateImageDisplayed     State = "image_displayed"
	StateComparisonRendered State = "comparison_rendered"
	StatePredictionRendered State = "prediction_rendered"
	StateCleanupDone        State = "cleanup_done"
)

type Predictor interface {
	PredictPneumonia(r io.Reader) (float32, error)
}

type Sampler interface {
	SamplePair() (normal, pneumonia reference.Exemplar, err error)
}

type Store interface {
	Save(r io.Reader, filename string) (*upload.File, error)
}

type Upload struct {
	Reader   io.Reader
	Filename string
}

// Result holds everything rendered for one request. On failure it holds the
// stages that completed before the error.
type Result struct {
	ID          string
	Filename    string
	ContentType string
	Uploaded    []byte
	Comparison  []byte
	Normal      reference.Exemplar
	Pneumonia   reference.Exemplar
	Probability float32
	Verdict     diagnosis.Verdict
	State       State
	History     []State
}

type Flow struct {
	predictor Predictor
	sampler   Sampler
	store     Store
	logger    *zap.SugaredLogger
}

func New(predictor Predictor, sampler Sampler, store Store, logger *zap.SugaredLogger) *Flow {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Flow{
		predictor: predictor,
		sampler:   sampler,
		store:     store,
		logger:    logger,
	}
}

// Run walks one upload through the states idle -> file_received ->
// image_displayed -> comparison_rendered -> prediction_rendered ->
// cleanup_done. The transient file is removed on every exit path.
func (f *Flow) Run(ctx context.Context, in Upload) (*Result, error) {
	res := &Result{
		Filename: in.Filename,
		State:    StateIdle,
		History:  []State{StateIdle},
	}

	file, err := f.store.Save(in.Reader, in.Filename)
	if err != nil {
		return res, f.fail(res, apperr.Wrap(apperr.KindUpload, "flow.receive", "save upload", err))
	}
	res.ID = file.ID
	f.advance(res, StateFileReceived)

	defer func() {
		if res.State == StateCleanupDone {
			return
		}
		if rerr := file.Remove(); rerr != nil {
			f.logger.Errorf("[%s] remove transient file %s: %v", res.ID, file.Path, rerr)
		}
	}()

	steps := []struct {
		next State
		run  func(*upload.File, *Result, *stepState) error
	}{
		{StateImageDisplayed, f.display},
		{StateComparisonRendered, f.compare},
		{StatePredictionRendered, f.predict},
		{StateCleanupDone, f.cleanup},
	}

	st := &stepState{}
	for _, step := range steps {
		if err := ctx.Err(); err != nil && step.next != StateCleanupDone {
			return res, f.fail(res, apperr.Wrap(apperr.KindUnknown, "flow.run", "request cancelled", err))
		}
		if err := step.run(file, res, st); err != nil {
			return res, f.fail(res, err)
		}
		f.advance(res, step.next)
	}

	f.logger.Infof("[%s] %s: probability=%.4f verdict=%s", res.ID, res.Filename, res.Probability, res.Verdict)
	return res, nil
}

// stepState carries intermediate values between states.
type stepState struct {
	uploaded image.Image
}

func (f *Flow) display(file *upload.File, res *Result, st *stepState) error {
	data, err := os.ReadFile(file.Path)
	if err != nil {
		return apperr.Wrap(apperr.KindUpload, "flow.display", "read transient file", err)
	}
	img, format, err := preprocess.Decode(bytes.NewReader(data))
	if err != nil {
		return apperr.Wrap(apperr.KindDecode, "flow.display", "decode upload", err)
	}
	res.Uploaded = data
	res.ContentType = upload.ContentType(format)
	st.uploaded = img
	return nil
}

func (f *Flow) compare(_ *upload.File, res *Result, st *stepState) error {
	normal, pneumonia, err := f.sampler.SamplePair()
	if err != nil {
		return apperr.Wrap(apperr.KindReference, "flow.compare", "sample reference images", err)
	}
	normalImg, err := normal.Open()
	if err != nil {
		return apperr.Wrap(apperr.KindReference, "flow.compare", "open normal exemplar", err)
	}
	pneumoniaImg, err := pneumonia.Open()
	if err != nil {
		return apperr.Wrap(apperr.KindReference, "flow.compare", "open pneumonia exemplar", err)
	}

	fig, err := compare.Figure(st.uploaded, normalImg, pneumoniaImg)
	if err != nil {
		return apperr.Wrap(apperr.KindRender, "flow.compare", "compose comparison", err)
	}
	png, err := compare.EncodePNG(fig)
	if err != nil {
		return apperr.Wrap(apperr.KindRender, "flow.compare", "encode comparison", err)
	}

	res.Normal = normal
	res.Pneumonia = pneumonia
	res.Comparison = png
	return nil
}

func (f *Flow) predict(file *upload.File, res *Result, _ *stepState) error {
	in, err := file.Open()
	if err != nil {
		return apperr.Wrap(apperr.KindUpload, "flow.predict", "open transient file", err)
	}
	defer in.Close()

	p, err := f.predictor.PredictPneumonia(in)
	if err != nil {
		return apperr.Wrap(apperr.KindModel, "flow.predict", "predict pneumonia", err)
	}
	res.Probability = p
	res.Verdict = diagnosis.Decide(p)
	return nil
}

func (f *Flow) cleanup(file *upload.File, _ *Result, _ *stepState) error {
	if err := file.Remove(); err != nil {
		return apperr.Wrap(apperr.KindUpload, "flow.cleanup", "remove transient file", err)
	}
	return nil
}

func (f *Flow) advance(res *Result, next State) {
	f.logger.Debugf("[%s] %s -> %s", res.ID, res.State, next)
	res.State = next
	res.History = append(res.History, next)
}

func (f *Flow) fail(res *Result, err error) error {
	f.logger.Warnf("[%s] aborted in state %s: %v", res.ID, res.State, err)
	return apperr.WithState(err, string(res.State))
}
