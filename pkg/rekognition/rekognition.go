package rekognition

import (
	"context"
	"errors"
	"fmt"

	"FocusTracker/internal/entity"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/rekognition"
	"github.com/aws/aws-sdk-go/service/rekognition/rekognitioniface"
)

var ErrEmptyImage = errors.New("rekognition: empty image")

type IRekognition interface {
	DetectFaces(ctx context.Context, image []byte) ([]entity.FaceAttributes, error)
}

type rekognitionClient struct {
	client rekognitioniface.RekognitionAPI
}

func New(sess *session.Session) IRekognition {
	return &rekognitionClient{client: rekognition.New(sess)}
}

// NewWithAPI wraps an existing client, for tests and custom endpoints.
func NewWithAPI(api rekognitioniface.RekognitionAPI) IRekognition {
	return &rekognitionClient{client: api}
}

func (r *rekognitionClient) DetectFaces(ctx context.Context, image []byte) ([]entity.FaceAttributes, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}

	out, err := r.client.DetectFacesWithContext(ctx, &rekognition.DetectFacesInput{
		Image:      &rekognition.Image{Bytes: image},
		Attributes: aws.StringSlice([]string{rekognition.AttributeAll}),
	})
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	faces := make([]entity.FaceAttributes, 0, len(out.FaceDetails))
	for _, fd := range out.FaceDetails {
		if fd == nil {
			continue
		}
		faces = append(faces, toFaceAttributes(fd))
	}

	return faces, nil
}

func toFaceAttributes(fd *rekognition.FaceDetail) entity.FaceAttributes {
	var attrs entity.FaceAttributes

	if fd.EyesOpen != nil && fd.EyesOpen.Value != nil {
		open := aws.BoolValue(fd.EyesOpen.Value)
		attrs.EyesOpen = &open
	}

	if fd.Pose != nil {
		attrs.Pose = &entity.Pose{
			Yaw:   aws.Float64Value(fd.Pose.Yaw),
			Pitch: aws.Float64Value(fd.Pose.Pitch),
		}
	}

	attrs.Emotions = make([]entity.Emotion, 0, len(fd.Emotions))
	for _, e := range fd.Emotions {
		if e == nil {
			continue
		}
		attrs.Emotions = append(attrs.Emotions, entity.Emotion{
			Label:      aws.StringValue(e.Type),
			Confidence: aws.Float64Value(e.Confidence),
		})
	}

	return attrs
}
