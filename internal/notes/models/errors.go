package models

import dErrors "notesync/pkg/domain-errors"

var errBodyRequired = dErrors.New(dErrors.CodeValidation, "body is required")
