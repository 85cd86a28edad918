package transform

import "github.com/pkg/errors"

var (
	// ErrSingular is returned when inverting a matrix with no inverse.
	ErrSingular = errors.New("matrix is singular")
	// ErrNotRigid is returned when a matrix does not hold a proper rotation.
	ErrNotRigid = errors.New("matrix is not a rigid transform")
	// ErrNotUpperTriangular is returned for camera intrinsics with non-zero lower entries.
	ErrNotUpperTriangular = errors.New("intrinsic matrix must be upper triangular with a non-zero diagonal")
)
