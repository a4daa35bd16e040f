package treatment

import "context"

type Repository interface {
	CountForPatient(ctx context.Context, patientID int64) (int64, error)
}
