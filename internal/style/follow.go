package style

import (
	"context"
	"fmt"
	"log"

	"clustermap/internal/service"
)

// ObjectLoader reads and parses a style object named by a bucket notification.
func (l *Loader) ObjectLoader() service.LoaderFunc[MapStyle] {
	return func(ctx context.Context, bucket, key string) (MapStyle, error) {
		return l.Load(ctx, fmt.Sprintf("s3://%s/%s", bucket, key))
	}
}

// Follow applies every style delivered on objects until the channel closes.
func Follow(objects <-chan *service.FetchedObject[MapStyle], apply func(MapStyle)) {
	for obj := range objects {
		log.Printf("Map style %q updated (%s %s/%s)", obj.Data.Name, obj.Event.EventName, obj.Event.S3.Bucket.Name, obj.Event.S3.Object.Key)
		apply(obj.Data)
	}
}
