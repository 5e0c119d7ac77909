// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package delivery

import "errors"

var (
	// ErrInvalidEnvelope indicates a notification body that is not JSON.
	// It can never succeed on redelivery.
	ErrInvalidEnvelope = errors.New("invalid notification envelope")

	// ErrIngesterRequired is returned when no ingester is provided.
	ErrIngesterRequired = errors.New("ingester required")

	// ErrQueueClientRequired is returned when no SQS client is provided.
	ErrQueueClientRequired = errors.New("queue client required")

	// ErrQueueURLRequired is returned when no queue URL is provided.
	ErrQueueURLRequired = errors.New("queue url required")

	// ErrReaderRequired is returned when no record reader is provided.
	ErrReaderRequired = errors.New("record reader required")
)
