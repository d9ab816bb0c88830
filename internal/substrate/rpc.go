package substrate

import (
	"context"
	"encoding/json"
	"fmt"

	fts "github.com/kvstore/fulltext/pkg/fulltext/substrate"
	"github.com/kvstore/fulltext/pkg/grpc"
	"github.com/kvstore/fulltext/pkg/proto"
)

// RegisterHandlers binds every pkg/fulltext/substrate.Substrate method on
// e to an RPC name internal/substrateclient.Client calls by, so e can be
// served out-of-process by cmd/substrated. Build and QueryBlacklisting's
// callback arguments have no counterpart here — the client resolves them
// into a plain request (a batch of upserts, a list of already-matched
// words) before ever reaching the wire.
func RegisterHandlers(s *grpc.Server, e *Engine) {
	s.Register("Substrate.HandleRecordUpdate", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.RecordUpdateRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding RecordUpdateRequest: %w", err)
		}
		if err := e.HandleRecordUpdate(ctx, req.Path, req.Word, req.OldValue, req.NewValue, req.Meta); err != nil {
			return nil, err
		}
		return proto.RecordUpdateResponse{}, nil
	})

	s.Register("Substrate.Count", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.CountRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding CountRequest: %w", err)
		}
		n, err := e.Count(ctx, fts.Op(req.Op), req.Value)
		if err != nil {
			return nil, err
		}
		return proto.CountResponse{Count: n}, nil
	})

	s.Register("Substrate.Query", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.QueryRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding QueryRequest: %w", err)
		}
		var filter *fts.QueryFilter
		if len(req.Filter) > 0 {
			paths := make(map[string]struct{}, len(req.Filter))
			for _, p := range req.Filter {
				paths[p] = struct{}{}
			}
			filter = &fts.QueryFilter{Paths: paths}
		}
		res, err := e.Query(ctx, fts.Op(req.Op), req.Value, filter)
		if err != nil {
			return nil, err
		}
		return proto.QueryResponse{Matches: toProtoMatches(res.Matches), Stats: res.Stats}, nil
	})

	s.Register("Substrate.ListWords", func(ctx context.Context, raw json.RawMessage) (any, error) {
		words, err := e.ListWords(ctx)
		if err != nil {
			return nil, err
		}
		return proto.ListWordsResponse{Words: words}, nil
	})

	s.Register("Substrate.ResolveBlacklist", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.ResolveBlacklistRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding ResolveBlacklistRequest: %w", err)
		}
		res, err := e.ResolveBlacklist(ctx, req.MatchedWords)
		if err != nil {
			return nil, err
		}
		return proto.ResolveBlacklistResponse{Matches: toProtoMatches(res.Matches), Stats: res.Stats}, nil
	})

	s.Register("Substrate.RebuildFromUpserts", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.RebuildRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding RebuildRequest: %w", err)
		}
		upserts := make([]WordUpsert, len(req.Upserts))
		for i, u := range req.Upserts {
			upserts[i] = WordUpsert{Word: u.Word, Path: u.Path, Meta: u.Meta}
		}
		n, err := e.RebuildFromUpserts(ctx, upserts)
		if err != nil {
			return nil, err
		}
		return proto.RebuildResponse{WordsIndexed: n}, nil
	})

	s.Register("Substrate.Cache", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.CacheRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding CacheRequest: %w", err)
		}
		if req.Write {
			results := &fts.ResultSet{Stats: fts.Stats{}}
			for _, m := range req.Matches {
				results.Matches = append(results.Matches, fts.Match{Path: m.Path, Metadata: m.Metadata})
			}
			if _, err := e.Cache(ctx, req.Op, req.Value, results); err != nil {
				return nil, err
			}
			return proto.CacheResponse{}, nil
		}
		cached, err := e.Cache(ctx, req.Op, req.Value, nil)
		if err != nil {
			return nil, err
		}
		if cached == nil {
			return proto.CacheResponse{Found: false}, nil
		}
		return proto.CacheResponse{Found: true, Matches: toProtoMatches(cached.Matches), Stats: cached.Stats}, nil
	})
}

func toProtoMatches(matches []fts.Match) []proto.Match {
	out := make([]proto.Match, len(matches))
	for i, m := range matches {
		out[i] = proto.Match{Path: m.Path, Metadata: m.Metadata}
	}
	return out
}
