package sdk

import (
	"github.com/and161185/ironkeep/internal/device"
	"github.com/and161185/ironkeep/internal/errs"
	"github.com/and161185/ironkeep/internal/jwtclaims"
	"github.com/and161185/ironkeep/internal/model"
)

// Identifiers and names.
type (
	UserID       = model.UserID
	GroupID      = model.GroupID
	DocumentID   = model.DocumentID
	DeviceID     = model.DeviceID
	GroupName    = model.GroupName
	DocumentName = model.DocumentName
	DeviceName   = model.DeviceName
	UserOrGroup  = model.UserOrGroup
)

// Options.
type (
	UserCreateOpts      = model.UserCreateOpts
	DeviceCreateOpts    = model.DeviceCreateOpts
	GroupCreateOpts     = model.GroupCreateOpts
	DocumentEncryptOpts = model.DocumentEncryptOpts
)

// Results.
type (
	UserResult                     = model.UserResult
	UserCreateResult               = model.UserCreateResult
	UserDevice                     = model.UserDevice
	UserDeviceListResult           = model.UserDeviceListResult
	GroupMeta                      = model.GroupMeta
	GroupCreateResult              = model.GroupCreateResult
	GroupListResult                = model.GroupListResult
	GroupGetResult                 = model.GroupGetResult
	GroupAccessEditErr             = model.GroupAccessEditErr
	GroupAccessEditResult          = model.GroupAccessEditResult
	DocAccessEditErr               = model.DocAccessEditErr
	DocumentAccessResult           = model.DocumentAccessResult
	DocumentEncryptResult          = model.DocumentEncryptResult
	DocumentDecryptResult          = model.DocumentDecryptResult
	DocumentListMeta               = model.DocumentListMeta
	DocumentListResult             = model.DocumentListResult
	DocumentMetadataResult         = model.DocumentMetadataResult
	DocumentEncryptUnmanagedResult = model.DocumentEncryptUnmanagedResult
	DocumentDecryptUnmanagedResult = model.DocumentDecryptUnmanagedResult
	AssociationType                = model.AssociationType
)

// Association values of DocumentListMeta and DocumentMetadataResult.
const (
	AssociationOwner     = model.AssociationOwner
	AssociationFromUser  = model.AssociationFromUser
	AssociationFromGroup = model.AssociationFromGroup
)

// Tokens and errors.
type (
	Jwt             = jwtclaims.Jwt
	JwtClaims       = jwtclaims.Claims
	ValidationError = errs.ValidationError
	ParseError      = errs.ParseError
	JwtError        = errs.JwtError
	SdkError        = errs.SdkError
)

// Sentinels matched with errors.Is.
var (
	ErrNotFound        = errs.ErrNotFound
	ErrAlreadyExists   = errs.ErrAlreadyExists
	ErrUnauthorized    = errs.ErrUnauthorized
	ErrAccessDenied    = errs.ErrAccessDenied
	ErrRateLimited     = errs.ErrRateLimited
	ErrInvalidArgument = errs.ErrInvalidArgument
	ErrTimeout         = errs.ErrTimeout
	ErrUnavailable     = errs.ErrUnavailable
)

var (
	ValidateUserID       = model.ValidateUserID
	ValidateGroupID      = model.ValidateGroupID
	ValidateDocumentID   = model.ValidateDocumentID
	ValidateGroupName    = model.ValidateGroupName
	ValidateDocumentName = model.ValidateDocumentName
	ValidateDeviceName   = model.ValidateDeviceName
	GranteeUserID        = model.GranteeUserID
	GranteeGroupID       = model.GranteeGroupID
	NewGroupCreateOpts   = model.NewGroupCreateOpts

	// ParseJwt checks the structure of an identity JWT without verifying its signature.
	ParseJwt = jwtclaims.Validate

	// DeviceContextFromJSON parses a serialized device bundle.
	DeviceContextFromJSON = device.FromJSON
	// NewDeviceContext builds a device context from its parts.
	NewDeviceContext = device.New
)
