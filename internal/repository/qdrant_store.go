package repository

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	pb "github.com/qdrant/go-client/qdrant"
	"github.com/timmy/ideaforge/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	defaultQdrantDimension  = 384
	defaultQdrantQueryLimit = 10000
	qdrantScrollPage        = 256
)

// QdrantConnectionConfig holds configuration for the Qdrant connection.
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // Qdrant Cloud API key, enables TLS
	UseTLS          bool
	VectorDimension int
	MaxQueryLimit   int
}

// apiKeyInterceptor adds the api-key header to every unary call.
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantStore is a VectorStore backed by a Qdrant collection over gRPC.
// Metadata is stored as a flat payload of string values.
type QdrantStore struct {
	conn            *grpc.ClientConn
	pointsClient    pb.PointsClient
	collectClient   pb.CollectionsClient
	collectionName  string
	vectorDimension int
	maxQueryLimit   int
}

// NewQdrantStore dials Qdrant. Local instances use an insecure channel;
// Qdrant Cloud (APIKey set) uses TLS 1.3 plus the api-key header.
func NewQdrantStore(cfg *QdrantConnectionConfig) (*QdrantStore, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	dimension := cfg.VectorDimension
	if dimension <= 0 {
		dimension = defaultQdrantDimension
	}
	maxLimit := cfg.MaxQueryLimit
	if maxLimit <= 0 {
		maxLimit = defaultQdrantQueryLimit
	}

	var opts []grpc.DialOption
	if cfg.UseTLS || cfg.APIKey != "" {
		creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS13})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, goerr.Wrap(domain.StoreError(err), "failed to connect to qdrant", goerr.V("addr", addr))
	}

	return &QdrantStore{
		conn:            conn,
		pointsClient:    pb.NewPointsClient(conn),
		collectClient:   pb.NewCollectionsClient(conn),
		collectionName:  cfg.Collection,
		vectorDimension: dimension,
		maxQueryLimit:   maxLimit,
	}, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.conn.Close()
}

// EnsureCollection creates the collection with cosine distance if it is
// missing, and checks the vector size and distance if it exists.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	info, err := s.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: s.collectionName,
	})
	if err == nil {
		return checkCollectionParams(s.collectionName, info.GetResult(), s.vectorDimension)
	}
	if code := status.Code(err); code != codes.NotFound && code != codes.Unknown {
		return goerr.Wrap(domain.StoreError(err), "failed to get collection", goerr.V("collection", s.collectionName))
	}

	_, err = s.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(s.vectorDimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
		HnswConfig: &pb.HnswConfigDiff{
			M:                 optionalUint64(16),
			EfConstruct:       optionalUint64(128),
			FullScanThreshold: optionalUint64(10000),
		},
	})
	if err != nil {
		return goerr.Wrap(domain.StoreError(err), "failed to create collection", goerr.V("collection", s.collectionName))
	}
	return nil
}

func optionalUint64(v uint64) *uint64 {
	return &v
}

// checkCollectionParams rejects an existing collection whose vectors would
// not produce cosine scores of the expected dimension.
func checkCollectionParams(name string, info *pb.CollectionInfo, dimension int) error {
	params := collectionVectorParams(info)
	if params == nil {
		return nil
	}
	if size := params.GetSize(); size > 0 && size != uint64(dimension) {
		return goerr.New("collection vector size does not match embedding dimension",
			goerr.V("collection", name), goerr.V("size", size), goerr.V("expected", dimension))
	}
	if dist := params.GetDistance(); dist != pb.Distance_Cosine {
		return goerr.New("collection distance is not cosine",
			goerr.V("collection", name), goerr.V("distance", dist.String()))
	}
	return nil
}

func collectionVectorParams(info *pb.CollectionInfo) *pb.VectorParams {
	vectors := info.GetConfig().GetParams().GetVectorsConfig()
	if vectors == nil {
		return nil
	}
	if single := vectors.GetParams(); single != nil {
		return single
	}
	for _, params := range vectors.GetParamsMap().GetMap() {
		if params != nil {
			return params
		}
	}
	return nil
}

func pointID(id string) (*pb.PointId, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid point id", goerr.V("id", id))
	}
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: uid.String()}}, nil
}

func toPayload(md map[string]string) map[string]*pb.Value {
	payload := make(map[string]*pb.Value, len(md))
	for k, v := range md {
		payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
	}
	return payload
}

func fromPayload(payload map[string]*pb.Value) map[string]string {
	if payload == nil {
		return nil
	}
	md := make(map[string]string, len(payload))
	for k, v := range payload {
		md[k] = v.GetStringValue()
	}
	return md
}

func payloadSelector(enable bool) *pb.WithPayloadSelector {
	return &pb.WithPayloadSelector{
		SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: enable},
	}
}

func vectorSelector(enable bool) *pb.WithVectorsSelector {
	return &pb.WithVectorsSelector{
		SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: enable},
	}
}

func retrievedRecord(p *pb.RetrievedPoint) Record {
	return Record{
		ID:       p.GetId().GetUuid(),
		Vector:   p.GetVectors().GetVector().GetData(),
		Metadata: fromPayload(p.GetPayload()),
	}
}

// Upsert writes one point and waits for it to be applied.
func (s *QdrantStore) Upsert(ctx context.Context, id string, vector []float32, md map[string]string) error {
	pid, err := pointID(id)
	if err != nil {
		return err
	}

	wait := true
	_, err = s.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collectionName,
		Wait:           &wait,
		Points: []*pb.PointStruct{
			{
				Id: pid,
				Vectors: &pb.Vectors{
					VectorsOptions: &pb.Vectors_Vector{
						Vector: &pb.Vector{Data: vector},
					},
				},
				Payload: toPayload(md),
			},
		},
	})
	if err != nil {
		return goerr.Wrap(domain.StoreError(err), "failed to upsert point", goerr.V("id", id))
	}
	return nil
}

// Query runs a cosine nearest-neighbor search.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]Match, error) {
	if topK <= 0 || topK > s.maxQueryLimit {
		topK = s.maxQueryLimit
	}

	resp, err := s.pointsClient.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collectionName,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    payloadSelector(includeMetadata),
	})
	if err != nil {
		return nil, goerr.Wrap(domain.StoreError(err), "failed to search", goerr.V("top_k", topK))
	}

	matches := make([]Match, len(resp.GetResult()))
	for i, scored := range resp.GetResult() {
		matches[i] = Match{
			ID:    scored.GetId().GetUuid(),
			Score: float64(scored.GetScore()),
		}
		if includeMetadata {
			matches[i].Metadata = fromPayload(scored.GetPayload())
		}
	}
	return matches, nil
}

// Fetch retrieves one point with its vector and payload.
func (s *QdrantStore) Fetch(ctx context.Context, id string) (*Record, error) {
	pid, err := pointID(id)
	if err != nil {
		return nil, goerr.Wrap(ErrRecordNotFound, "fetch", goerr.V("id", id))
	}

	resp, err := s.pointsClient.Get(ctx, &pb.GetPoints{
		CollectionName: s.collectionName,
		Ids:            []*pb.PointId{pid},
		WithPayload:    payloadSelector(true),
		WithVectors:    vectorSelector(true),
	})
	if err != nil {
		return nil, goerr.Wrap(domain.StoreError(err), "failed to get point", goerr.V("id", id))
	}
	if len(resp.GetResult()) == 0 {
		return nil, goerr.Wrap(ErrRecordNotFound, "fetch", goerr.V("id", id))
	}

	rec := retrievedRecord(resp.GetResult()[0])
	return &rec, nil
}

// Delete removes one point. Qdrant treats absent ids as a no-op.
func (s *QdrantStore) Delete(ctx context.Context, id string) error {
	pid, err := pointID(id)
	if err != nil {
		// an id that is not a UUID can never have been stored
		return nil
	}

	wait := true
	_, err = s.pointsClient.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collectionName,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: []*pb.PointId{pid}},
			},
		},
	})
	if err != nil {
		return goerr.Wrap(domain.StoreError(err), "failed to delete point", goerr.V("id", id))
	}
	return nil
}

// List pages through the whole collection with the scroll API.
func (s *QdrantStore) List(ctx context.Context) ([]Record, error) {
	var (
		records []Record
		offset  *pb.PointId
		limit   = uint32(qdrantScrollPage)
	)

	for {
		resp, err := s.pointsClient.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: s.collectionName,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    payloadSelector(true),
			WithVectors:    vectorSelector(true),
		})
		if err != nil {
			return nil, goerr.Wrap(domain.StoreError(err), "failed to scroll", goerr.V("fetched", len(records)))
		}

		for _, p := range resp.GetResult() {
			records = append(records, retrievedRecord(p))
		}

		offset = resp.GetNextPageOffset()
		if offset == nil {
			return records, nil
		}
	}
}

// Stats reports the collection's point count.
func (s *QdrantStore) Stats(ctx context.Context) (*StoreStats, error) {
	info, err := s.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: s.collectionName,
	})
	if err != nil {
		return nil, goerr.Wrap(domain.StoreError(err), "failed to get collection info")
	}
	return &StoreStats{
		TotalRecords: int64(info.GetResult().GetPointsCount()),
		Dimension:    s.vectorDimension,
	}, nil
}

// Dimension returns the collection's vector size.
func (s *QdrantStore) Dimension() int { return s.vectorDimension }

// MaxQueryLimit returns the largest honoured topK.
func (s *QdrantStore) MaxQueryLimit() int { return s.maxQueryLimit }
