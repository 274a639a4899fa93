package handlers

import (
	"context"
	"fmt"

	types "github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/domain"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/nasa"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/services"
)

type fakeIngestService struct {
	calls   int
	lastReq services.IngestRequest
	res     services.IngestResult
	err     error
}

func (f *fakeIngestService) Ingest(ctx context.Context, req services.IngestRequest) (services.IngestResult, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return services.IngestResult{}, f.err
	}
	return f.res, nil
}

type fakeLibraryService struct {
	images      []services.ImageSummary
	listErr     error
	deleteCalls int
	lastDeleted string
	deleteErr   error
}

func (f *fakeLibraryService) ListImages(ctx context.Context) ([]services.ImageSummary, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.images == nil {
		return []services.ImageSummary{}, nil
	}
	return f.images, nil
}

func (f *fakeLibraryService) DeleteImage(ctx context.Context, imageID string) error {
	f.deleteCalls++
	f.lastDeleted = imageID
	return f.deleteErr
}

type fakeAnnotationService struct {
	list      []types.AnnotationRecord
	listErr   error
	addCalls  int
	lastAdded types.AnnotationRecord
	addErr    error
}

func (f *fakeAnnotationService) List(ctx context.Context, imageID string) ([]types.AnnotationRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.list == nil {
		return []types.AnnotationRecord{}, nil
	}
	return f.list, nil
}

func (f *fakeAnnotationService) Add(ctx context.Context, imageID string, rec types.AnnotationRecord) (types.AnnotationRecord, error) {
	f.addCalls++
	f.lastAdded = rec
	if f.addErr != nil {
		return types.AnnotationRecord{}, f.addErr
	}
	return rec, nil
}

type fakeNASAClient struct {
	searchCalls int
	searchItems []nasa.SearchItem
	searchErr   error
	infoCalls   int
	info        nasa.AssetInfo
	infoErr     error
}

func (f *fakeNASAClient) Search(ctx context.Context, query string) ([]nasa.SearchItem, error) {
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchItems, nil
}

func (f *fakeNASAClient) AssetManifest(ctx context.Context, nasaID string) ([]string, error) {
	return nil, nil
}

func (f *fakeNASAClient) ResolveDownloadURL(ctx context.Context, nasaID string) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func (f *fakeNASAClient) AssetInfo(ctx context.Context, nasaID string) (nasa.AssetInfo, error) {
	f.infoCalls++
	if f.infoErr != nil {
		return nasa.AssetInfo{}, f.infoErr
	}
	return f.info, nil
}

type fakeTilerTools struct {
	readyErr error
}

func (f *fakeTilerTools) AssertReady(ctx context.Context) error { return f.readyErr }

func (f *fakeTilerTools) ConvertPDSToTIFF(ctx context.Context, inputPath, outDir string) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func (f *fakeTilerTools) BuildPyramid(ctx context.Context, inputPath, outDir string) (string, error) {
	return "", fmt.Errorf("not implemented")
}
