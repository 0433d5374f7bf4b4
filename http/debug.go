package http

import (
	"net/http"

	"github.com/aukilabs/bsptree/bsp"
	"github.com/aukilabs/bsptree/models"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeInvalidRequest    = "debug-invalid-request"
	ErrTypeMethodNotAllowed  = "debug-method-not-allowed"
	ErrTypeDimensionMismatch = "debug-dimension-mismatch"

	maxRequestBodySize = 1 << 16
)

type StatsResponse struct {
	World    string    `json:"world"`
	Entities int       `json:"entities"`
	Tree     bsp.Stats `json:"tree"`
}

type BranchesResponse struct {
	Branches []bsp.BranchInfo `json:"branches"`
}

type RayQuery struct {
	From mgl64.Vec3 `json:"from"`
	To   mgl64.Vec3 `json:"to"`
}

type QueryResponse struct {
	Leaves []LeafResponse `json:"leaves"`
}

type LeafResponse struct {
	Kind   string   `json:"kind"`
	ID     uint32   `json:"id"`
	Bounds bsp.AABB `json:"bounds"`
}

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

// HandleTreeStats writes the statistics of the world tree.
func HandleTreeStats(world *models.World) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := StatsResponse{
			World:    world.UUID,
			Entities: world.EntityCount(),
		}
		world.WithTree(func(t *bsp.Tree) {
			res.Tree = t.Stats()
		})

		writeJSON(w, http.StatusOK, res)
	}
}

// HandleTreeBranches writes every allocated branch of the world tree, parents
// first.
func HandleTreeBranches(world *models.World) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var res BranchesResponse
		world.WithTree(func(t *bsp.Tree) {
			t.Walk(func(b bsp.BranchInfo) bool {
				res.Branches = append(res.Branches, b)
				return true
			})
		})

		writeJSON(w, http.StatusOK, res)
	}
}

// HandleBoxQuery returns the leaves overlapping the posted box, infinite leaves
// included.
func HandleBoxQuery(world *models.World) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var box bsp.AABB
		err := decodeQuery(w, r, &box)
		if err == nil {
			err = checkBox(box, world.Dimensions())
		}
		instrumentQuery("box", err)
		if err != nil {
			writeError(w, err)
			return
		}

		var leaves []*bsp.Leaf
		world.WithTree(func(t *bsp.Tree) {
			leaves = t.QueryOverlap(box)
		})

		writeJSON(w, http.StatusOK, newQueryResponse(leaves))
	}
}

// HandleRayQuery returns the leaves whose box the posted segment crosses,
// infinite leaves included. Axes beyond the world dimensions are ignored.
func HandleRayQuery(world *models.World) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q RayQuery
		err := decodeQuery(w, r, &q)
		instrumentQuery("ray", err)
		if err != nil {
			writeError(w, err)
			return
		}

		dim := world.Dimensions()
		var leaves []*bsp.Leaf
		world.WithTree(func(t *bsp.Tree) {
			leaves = t.CollideSegment(q.From[:dim], q.To[:dim], nil)
		})

		writeJSON(w, http.StatusOK, newQueryResponse(leaves))
	}
}

func decodeQuery(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Method != http.MethodPost {
		return errors.New("method not allowed").
			WithType(ErrTypeMethodNotAllowed).
			WithTag("method", r.Method)
	}

	body := http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return errors.New("decoding query failed").
			WithType(ErrTypeInvalidRequest).
			Wrap(err)
	}
	return nil
}

func checkBox(box bsp.AABB, dim int) error {
	if box.IsEmpty() {
		return errors.New("empty query box").
			WithType(ErrTypeInvalidRequest)
	}

	if box.Dim() != dim {
		return errors.New("query box dimensions do not match the world").
			WithType(ErrTypeDimensionMismatch).
			WithTag("dimensions", box.Dim()).
			WithTag("world_dimensions", dim)
	}
	return nil
}

func newQueryResponse(leaves []*bsp.Leaf) QueryResponse {
	res := QueryResponse{
		Leaves: make([]LeafResponse, len(leaves)),
	}
	for i, l := range leaves {
		res.Leaves[i] = LeafResponse{
			Kind:   models.EntityKind(l.DataType).String(),
			ID:     uint32(l.Index),
			Bounds: l.Bounds(),
		}
	}
	return res
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.Warn(errors.New("encoding debug response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.IsType(err, ErrTypeMethodNotAllowed) {
		status = http.StatusMethodNotAllowed
	}

	logs.WithTag("status", status).Debug(err)
	writeJSON(w, status, errorResponse{
		Error: err.Error(),
		Type:  errors.Type(err),
	})
}
