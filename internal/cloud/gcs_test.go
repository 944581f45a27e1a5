// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cloud_test

import (
	"encoding/json"
	"testing"

	"github.com/jaycherian/gcp-go-media-compliance/internal/cloud"
	test "github.com/jaycherian/gcp-go-media-compliance/internal/testutil"
	"github.com/stretchr/testify/assert"
)

// A finalize notification must reduce to the gs:// reference the
// source-fetch stage consumes, object prefix included.
func TestNotificationObjectURI(t *testing.T) {
	notification := &cloud.GCSPubSubNotification{}
	assert.NoError(t, json.Unmarshal([]byte(test.GetTestUploadNotificationText()), notification))

	obj := notification.Object()
	assert.Equal(t, "media-compliance-uploads", obj.Bucket)
	assert.Equal(t, "gs://media-compliance-uploads/sample-episode.mp4", obj.URI())

	nested := cloud.GCSObject{Bucket: "media-compliance-uploads", Name: "incoming/sample episode.mp4"}
	assert.Equal(t, "gs://media-compliance-uploads/incoming/sample episode.mp4", nested.URI())
}
