package tpa

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/blobstore"
	"github.com/hms/hms/internal/platform/events"
	"github.com/hms/hms/internal/platform/store"
)

// AddClaim files a pending claim against an active policy. The claim takes
// its TPA and patient from the policy when they are not given.
func (s *Service) AddClaim(ctx context.Context, c *Claim) (*Claim, error) {
	if c.PolicyID == "" {
		return nil, apperr.Invalid("policyId is required")
	}
	if !c.ClaimAmount.IsPositive() {
		return nil, apperr.Invalid("claimAmount must be greater than zero")
	}

	ctx, deferred := events.Defer(ctx)
	err := s.tx.Atomic(ctx, func(ctx context.Context) error {
		p, err := s.policies.GetByID(ctx, c.PolicyID)
		if err != nil {
			return err
		}
		if p.Status != StatusActive {
			return apperr.Invalid("policy %s is %s", p.PolicyNumber, p.Status)
		}
		if c.TPAID == "" {
			c.TPAID = p.TPAID
		}
		if c.TPAID != p.TPAID {
			return apperr.Invalid("tpaId does not match the policy")
		}
		if c.PatientID == "" {
			c.PatientID = p.PatientID
		}
		if c.PatientName == "" {
			c.PatientName = p.PatientName
		}

		now := s.now().UTC()
		c.ID = store.NewID("CLM")
		c.Status = ClaimPending
		c.AuthorizationNumber = fmt.Sprintf("AUTH-%d", now.UnixMilli())
		c.SubmissionDate = now
		c.ApprovedAmount = decimal.Zero
		c.DeductionAmount = decimal.Zero
		c.PayableAmount = decimal.Zero
		c.TPAResponse = nil
		c.DisbursementDate = nil
		if c.Documents == nil {
			c.Documents = []Document{}
		}
		c.CreatedAt = now
		c.UpdatedAt = now
		if err := s.claims.Create(ctx, c); err != nil {
			return fmt.Errorf("create claim: %w", err)
		}
		s.transitioned(ctx, "claim.submitted", c)
		return nil
	})
	if err != nil {
		deferred.Discard()
		return nil, err
	}
	deferred.Run()
	return c, nil
}

func (s *Service) GetClaim(ctx context.Context, id string) (*Claim, error) {
	return s.claims.GetByID(ctx, id)
}

func (s *Service) ListClaims(ctx context.Context, f ClaimFilter) ([]*Claim, error) {
	return s.claims.List(ctx, f)
}

// DeleteClaim removes the claim and its stored documents.
func (s *Service) DeleteClaim(ctx context.Context, id string) error {
	c, err := s.claims.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.claims.Delete(ctx, id); err != nil {
		return err
	}
	for _, d := range c.Documents {
		if d.BlobKey == "" || s.blobs == nil {
			continue
		}
		if err := s.blobs.Delete(ctx, d.BlobKey); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			s.logger.Warn().Err(err).Str("claim_id", id).Str("key", d.BlobKey).Msg("failed to delete claim document")
		}
	}
	return nil
}

type ApproveInput struct {
	ApprovedAmount  decimal.Decimal `json:"approvedAmount"`
	DeductionAmount decimal.Decimal `json:"deductionAmount"`
	Remarks         string          `json:"remarks"`
}

// ApproveClaim settles a pending claim. The payable amount is approved
// minus deduction and is not bounded.
func (s *Service) ApproveClaim(ctx context.Context, id string, in ApproveInput) (*Claim, error) {
	return s.transition(ctx, id, ClaimPending, "claim.approved", func(c *Claim) {
		now := s.now().UTC()
		c.Status = ClaimApproved
		c.ApprovedAmount = in.ApprovedAmount
		c.DeductionAmount = in.DeductionAmount
		c.PayableAmount = in.ApprovedAmount.Sub(in.DeductionAmount)
		c.Remarks = in.Remarks
		c.TPAResponse = &Response{
			Status:          ClaimApproved,
			ApprovalDate:    &now,
			ApprovedAmount:  c.ApprovedAmount,
			DeductionAmount: c.DeductionAmount,
			PayableAmount:   c.PayableAmount,
			Remarks:         in.Remarks,
		}
	})
}

func (s *Service) RejectClaim(ctx context.Context, id, reason string) (*Claim, error) {
	return s.transition(ctx, id, ClaimPending, "claim.rejected", func(c *Claim) {
		now := s.now().UTC()
		c.Status = ClaimRejected
		c.Remarks = reason
		c.TPAResponse = &Response{
			Status:          ClaimRejected,
			RejectionDate:   &now,
			ApprovedAmount:  decimal.Zero,
			DeductionAmount: decimal.Zero,
			PayableAmount:   decimal.Zero,
			Reason:          reason,
		}
	})
}

func (s *Service) DisburseClaim(ctx context.Context, id string) (*Claim, error) {
	return s.transition(ctx, id, ClaimApproved, "claim.disbursed", func(c *Claim) {
		now := s.now().UTC()
		c.Status = ClaimDisbursed
		c.DisbursementDate = &now
	})
}

func (s *Service) transition(ctx context.Context, id, from, event string, apply func(c *Claim)) (*Claim, error) {
	ctx, deferred := events.Defer(ctx)
	c, err := s.claims.Update(ctx, id, func(c *Claim) error {
		if c.Status != from {
			return fmt.Errorf("%w: claim %s is %s, expected %s", ErrInvalidTransition, c.ID, c.Status, from)
		}
		apply(c)
		c.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		deferred.Discard()
		return nil, err
	}
	s.transitioned(ctx, event, c)
	deferred.Run()
	return c, nil
}

func (s *Service) transitioned(ctx context.Context, event string, c *Claim) {
	claim := *c
	events.OnCommit(ctx, func() {
		s.logger.Info().Str("claim_id", claim.ID).Str("tpa_id", claim.TPAID).
			Str("status", claim.Status).Msg(strings.ReplaceAll(event, ".", " "))
		s.metrics.ClaimTransition(claim.Status)
		s.publish(ctx, event, "Claim", claim.ID, &claim)
	})
}

// DocumentKey is the blob key of a claim attachment.
func DocumentKey(claimID, docID string) string {
	return "claims/" + claimID + "/" + docID
}

// AddClaimDocument stores data in the blob store and attaches its metadata
// to the claim.
func (s *Service) AddClaimDocument(ctx context.Context, claimID, name, contentType string, data []byte) (*Document, error) {
	if s.blobs == nil {
		return nil, fmt.Errorf("claim documents: no blob store configured")
	}
	if strings.TrimSpace(name) == "" {
		return nil, apperr.Invalid("document name is required")
	}
	if _, err := s.claims.GetByID(ctx, claimID); err != nil {
		return nil, err
	}

	docID := store.NewID("DOC")
	key := DocumentKey(claimID, docID)
	if err := blobstore.Validate(key, contentType, len(data)); err != nil {
		return nil, apperr.Invalid("%v", err)
	}
	obj, err := s.blobs.Put(ctx, key, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	doc := Document{
		ID:          docID,
		Name:        name,
		ContentType: contentType,
		Size:        obj.Size,
		BlobKey:     key,
		UploadedAt:  s.now().UTC(),
	}
	if _, err := s.claims.Update(ctx, claimID, func(c *Claim) error {
		c.Documents = append(c.Documents, doc)
		c.UpdatedAt = doc.UploadedAt
		return nil
	}); err != nil {
		if derr := s.blobs.Delete(ctx, key); derr != nil {
			s.logger.Warn().Err(derr).Str("key", key).Msg("failed to remove orphaned document")
		}
		return nil, err
	}
	s.logger.Info().Str("claim_id", claimID).Str("document_id", docID).Int64("size", doc.Size).Msg("claim document attached")
	return &doc, nil
}

// GetClaimDocument returns an attachment's metadata and content. Documents
// attached before the blob store existed are decoded from their inline
// base64 content.
func (s *Service) GetClaimDocument(ctx context.Context, claimID, docID string) (*Document, []byte, error) {
	c, err := s.claims.GetByID(ctx, claimID)
	if err != nil {
		return nil, nil, err
	}
	for i := range c.Documents {
		d := c.Documents[i]
		if d.ID != docID {
			continue
		}
		if d.BlobKey == "" {
			data, err := decodeInline(d.Base64)
			if err != nil {
				return nil, nil, fmt.Errorf("decode document %s: %w", docID, err)
			}
			return &d, data, nil
		}
		if s.blobs == nil {
			return nil, nil, fmt.Errorf("claim documents: no blob store configured")
		}
		data, _, err := s.blobs.Get(ctx, d.BlobKey)
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, docID)
		}
		if err != nil {
			return nil, nil, err
		}
		return &d, data, nil
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, docID)
}

// decodeInline accepts raw base64 or a data: URL.
func decodeInline(s string) ([]byte, error) {
	if i := strings.Index(s, ";base64,"); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(s)
}
