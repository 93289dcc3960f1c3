package handlers

import (
	"errors"
	"maps"
	"net/http"
	"slices"

	"github.com/go-playground/validator/v10"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/questor/internal/platform/api"
	"github.com/example/questor/services/progress/internal/course"
	"github.com/example/questor/services/progress/internal/recorder"
	"github.com/example/questor/services/progress/internal/store"
)

// toStatus maps a service error onto a gRPC status carrying a reason and,
// for input errors, field violations.
func toStatus(err error) *status.Status {
	var (
		code    codes.Code
		reason  string
		msg     string
		fields  map[string]string
		vErrors validator.ValidationErrors
	)
	switch {
	case errors.As(err, &vErrors):
		code, reason, msg = codes.InvalidArgument, "VALIDATION_FAILED", "request validation failed"
		fields = make(map[string]string, len(vErrors))
		for _, fe := range vErrors {
			fields[fe.Field()] = "failed on " + fe.Tag()
		}
	case errors.Is(err, recorder.ErrInvalidPlayback):
		code, reason, msg = codes.InvalidArgument, "INVALID_PLAYBACK", "current_time must be >= 0 and duration > 0"
		fields = map[string]string{"duration": "must be positive", "current_time": "must not be negative"}
	case errors.Is(err, course.ErrPositionOutOfRange):
		code, reason, msg = codes.InvalidArgument, "POSITION_OUT_OF_RANGE", "section/lesson position is outside the course"
		fields = map[string]string{"section": "out of range", "lesson": "out of range"}
	case errors.Is(err, store.ErrCourseNotFound):
		code, reason, msg = codes.NotFound, "COURSE_NOT_FOUND", "course not found"
	case errors.Is(err, course.ErrLessonNotFound):
		code, reason, msg = codes.NotFound, "LESSON_NOT_FOUND", "lesson not found in course"
	case errors.Is(err, store.ErrCertificateNotFound):
		code, reason, msg = codes.NotFound, "CERTIFICATE_NOT_FOUND", "certificate not found"
	default:
		code, reason, msg = codes.Unavailable, "DATA_UNAVAILABLE", "progress data is temporarily unavailable"
	}

	st := status.New(code, msg)
	info := &errdetails.ErrorInfo{Reason: reason, Domain: "progress"}
	var (
		withDetails *status.Status
		derr        error
	)
	if len(fields) > 0 {
		br := &errdetails.BadRequest{}
		for _, f := range slices.Sorted(maps.Keys(fields)) {
			br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{Field: f, Description: fields[f]})
		}
		withDetails, derr = st.WithDetails(info, br)
	} else {
		withDetails, derr = st.WithDetails(info)
	}
	if derr != nil {
		return st
	}
	return withDetails
}

func writeServiceError(w http.ResponseWriter, requestID string, err error) {
	writeGRPCError(w, requestID, toStatus(err).Err())
}

func writeGRPCError(w http.ResponseWriter, requestID string, err error) {
	st, ok := status.FromError(err)
	if !ok {
		api.Internal(w, requestID)
		return
	}

	code := "INTERNAL"
	details := map[string]any{}
	for _, d := range st.Details() {
		switch v := d.(type) {
		case *errdetails.ErrorInfo:
			if v.GetReason() != "" {
				code = v.GetReason()
			}
		case *errdetails.BadRequest:
			for _, fv := range v.GetFieldViolations() {
				if fv.GetField() != "" {
					details[fv.GetField()] = fv.GetDescription()
				}
			}
		}
	}
	if len(details) == 0 {
		details = nil
	}

	switch st.Code() {
	case codes.InvalidArgument:
		api.BadRequest(w, code, st.Message(), requestID, details)
	case codes.Unauthenticated:
		api.Unauthorized(w, code, st.Message(), requestID)
	case codes.PermissionDenied:
		api.Forbidden(w, code, st.Message(), requestID)
	case codes.NotFound:
		api.NotFound(w, code, st.Message(), requestID)
	case codes.AlreadyExists:
		api.Conflict(w, code, st.Message(), requestID, details)
	case codes.ResourceExhausted:
		api.RateLimited(w, code, st.Message(), requestID, details)
	case codes.Unavailable:
		api.Unavailable(w, code, st.Message(), requestID)
	default:
		api.Internal(w, requestID)
	}
}
