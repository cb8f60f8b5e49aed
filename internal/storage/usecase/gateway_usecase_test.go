package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "storage-gateway/internal/shared/errors"
	"storage-gateway/internal/storage/domain/model"
	"storage-gateway/internal/storage/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTokens hands out a fixed token and records disconnects
type fakeTokens struct {
	token        string
	err          error
	disconnected []string
}

func (f *fakeTokens) Acquire(ctx context.Context, provider, accountID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

func (f *fakeTokens) Disconnect(ctx context.Context, provider, accountID string) error {
	f.disconnected = append(f.disconnected, provider+"/"+accountID)
	return nil
}

// uploadableDriver extends stubDriver with an upload sink
type uploadableDriver struct {
	stubDriver
	uploaded []byte
}

func (d *uploadableDriver) Upload(ctx context.Context, accountID, token, path string, content []byte) (*model.RawRecord, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.uploaded = content
	return &model.RawRecord{Name: "f", Path: path, Size: int64(len(content)), TypeCode: 1}, nil
}

func newTestGateway(t *testing.T, desc *model.ProviderDescriptor, driver repository.Driver) (*GatewayUsecase, *fakeTokens) {
	t.Helper()

	registry := NewRegistry(nil)
	require.NoError(t, registry.Register(desc, driver))

	classifier := newTestClassifier(t, nil)
	require.NoError(t, classifier.CompileRule(desc))

	tokens := &fakeTokens{token: "tok-1"}
	gateway := NewGatewayUsecase(registry, tokens, NewNormalizer(classifier), nil, nil)
	return gateway, tokens
}

func TestGatewayGetMetadata(t *testing.T) {
	desc := descriptorNamed("drive-x")
	driver := &stubDriver{record: &model.RawRecord{
		Name: "report.pdf", Path: "/docs/report.pdf", Size: 2048, TypeCode: 1,
	}}
	gateway, _ := newTestGateway(t, desc, driver)

	meta, err := gateway.GetMetadata(context.Background(), "drive-x", "acct-1", "/docs/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, model.KindFile, meta.Kind)
	require.NotNil(t, meta.Size)
	assert.Equal(t, int64(2048), *meta.Size)
}

func TestGatewayGetMetadataUnknownProvider(t *testing.T) {
	gateway, _ := newTestGateway(t, descriptorNamed("drive-x"), &stubDriver{})

	_, err := gateway.GetMetadata(context.Background(), "nope", "acct-1", "/x")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindUnknownProvider, apperrors.KindOf(err))
}

func TestGatewayWrapsUncategorizedDriverError(t *testing.T) {
	desc := descriptorNamed("drive-x")
	driver := &stubDriver{err: errors.New("weird backend payload")}
	gateway, _ := newTestGateway(t, desc, driver)

	_, err := gateway.GetMetadata(context.Background(), "drive-x", "acct-1", "/x")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindProviderProtocol, apperrors.KindOf(err))
}

func TestGatewayPreservesTaxonomyDriverError(t *testing.T) {
	desc := descriptorNamed("drive-x")
	driver := &stubDriver{err: apperrors.NewEntityNotFoundError("drive-x", "/missing")}
	gateway, _ := newTestGateway(t, desc, driver)

	_, err := gateway.GetMetadata(context.Background(), "drive-x", "acct-1", "/missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindEntityNotFound, apperrors.KindOf(err))
}

func TestGatewayCredentialFailureAborts(t *testing.T) {
	desc := descriptorNamed("drive-x")
	gateway, tokens := newTestGateway(t, desc, &stubDriver{})
	tokens.err = apperrors.NewCredentialExpiredError("drive-x", "acct-1")

	_, err := gateway.GetMetadata(context.Background(), "drive-x", "acct-1", "/x")
	require.Error(t, err)
	assert.True(t, apperrors.IsCredentialFailure(err))
}

func TestGatewayListRevisions(t *testing.T) {
	desc := descriptorNamed("drive-x")
	desc.Capabilities = append(desc.Capabilities, model.CapabilityRevisions)
	driver := &stubDriver{revisions: []model.RawRecord{
		{Revision: "v3", Size: 30, Modified: time.Now()},
		{Revision: "v2", Size: 20},
		{Revision: "v1", Size: 10},
	}}
	gateway, _ := newTestGateway(t, desc, driver)

	revisions, err := gateway.ListRevisions(context.Background(), "drive-x", "acct-1", "/f")
	require.NoError(t, err)
	require.Len(t, revisions, 3)
	assert.Equal(t, "v3", revisions[0].Revision)
	assert.Equal(t, "v1", revisions[2].Revision)
}

func TestGatewayListRevisionsRequiresCapability(t *testing.T) {
	desc := descriptorNamed("citations-y")
	desc.Capabilities = []model.Capability{model.CapabilityWidget}
	gateway, _ := newTestGateway(t, desc, &stubDriver{})

	_, err := gateway.ListRevisions(context.Background(), "citations-y", "acct-1", "/f")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestGatewayUpload(t *testing.T) {
	desc := descriptorNamed("drive-x")
	desc.Capabilities = append(desc.Capabilities, model.CapabilityUpload)
	desc.MaxUploadSize = 1024
	driver := &uploadableDriver{}
	gateway, _ := newTestGateway(t, desc, driver)

	content := []byte("hello")
	meta, err := gateway.Upload(context.Background(), "drive-x", "acct-1", "/hello.txt", content)
	require.NoError(t, err)
	assert.Equal(t, content, driver.uploaded)
	require.NotNil(t, meta.Size)
	assert.Equal(t, int64(len(content)), *meta.Size)
}

func TestGatewayUploadTooLargeRejectedBeforeTransfer(t *testing.T) {
	desc := descriptorNamed("drive-x")
	desc.Capabilities = append(desc.Capabilities, model.CapabilityUpload)
	desc.MaxUploadSize = 4
	driver := &uploadableDriver{}
	gateway, _ := newTestGateway(t, desc, driver)

	_, err := gateway.Upload(context.Background(), "drive-x", "acct-1", "/big.bin", []byte("too big"))
	require.Error(t, err)
	assert.True(t, apperrors.IsEntityTooLarge(err))
	assert.Nil(t, driver.uploaded, "oversized content must never reach the driver")
}

func TestGatewayUploadRequiresCapability(t *testing.T) {
	desc := descriptorNamed("drive-x")
	gateway, _ := newTestGateway(t, desc, &uploadableDriver{})

	_, err := gateway.Upload(context.Background(), "drive-x", "acct-1", "/x", []byte("data"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestGatewayUploadRequiresSink(t *testing.T) {
	desc := descriptorNamed("drive-x")
	desc.Capabilities = append(desc.Capabilities, model.CapabilityUpload)
	gateway, _ := newTestGateway(t, desc, &stubDriver{})

	_, err := gateway.Upload(context.Background(), "drive-x", "acct-1", "/x", []byte("data"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestGatewayDisconnect(t *testing.T) {
	desc := descriptorNamed("drive-x")
	gateway, tokens := newTestGateway(t, desc, &stubDriver{})

	require.NoError(t, gateway.Disconnect(context.Background(), "drive-x", "acct-1"))
	assert.Equal(t, []string{"drive-x/acct-1"}, tokens.disconnected)

	err := gateway.Disconnect(context.Background(), "unknown", "acct-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindUnknownProvider, apperrors.KindOf(err))
}

func TestGatewayListProviders(t *testing.T) {
	desc := descriptorNamed("drive-x")
	gateway, _ := newTestGateway(t, desc, &stubDriver{})

	providers := gateway.ListProviders()
	require.Len(t, providers, 1)
	assert.Equal(t, "drive-x", providers[0].ShortName)
}
