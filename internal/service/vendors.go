package service

import (
	"context"
	"io"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"eventhub/internal/apperr"
	"eventhub/internal/blob"
	"eventhub/internal/guard"
	"eventhub/internal/model"
	"eventhub/internal/repo"
)

const maxPortfolioItems = 20

type VendorProfileInput struct {
	ServiceType string `json:"serviceType" validate:"notblank,max=60"`
	Description string `json:"description" validate:"max=2000"`
	Pricing     string `json:"pricing" validate:"max=200"`
	Location    string `json:"location" validate:"max=200"`
}

// VendorListing is the public face of a vendor.
type VendorListing struct {
	Profile model.VendorProfile `json:"profile"`
	Name    string              `json:"name"`
	Avatar  string              `json:"avatar"`
	Bio     string              `json:"bio"`
}

func (in VendorProfileInput) applyTo(v *model.VendorProfile) {
	v.ServiceType = strings.TrimSpace(in.ServiceType)
	v.Description = in.Description
	v.Pricing = in.Pricing
	v.Location = strings.TrimSpace(in.Location)
}

// ownProfile returns p's live vendor profile.
func ownProfile(ctx context.Context, r *repo.Set, p guard.Principal) (model.VendorProfile, error) {
	if err := guard.AssertRole(p, model.RoleVendor); err != nil {
		return model.VendorProfile{}, err
	}
	v, err := r.Vendors.FindByUser(ctx, p.UserID)
	if err != nil {
		return v, err
	}
	if v.IsDeleted {
		return model.VendorProfile{}, apperr.NotFound("vendor profile", v.ID)
	}
	return v, nil
}

// CreateVendorProfile creates the single profile of a vendor user. A
// previously deleted profile is revived under its old id.
func (s *Service) CreateVendorProfile(ctx context.Context, p guard.Principal, in VendorProfileInput) (v model.VendorProfile, err error) {
	defer s.track("create_vendor_profile", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return v, err
	}

	if err := guard.AssertRole(p, model.RoleVendor); err != nil {
		return v, err
	}
	if err := validate(ctx, in); err != nil {
		return v, err
	}
	err = s.inTx(ctx, func(r *repo.Set) error {
		now := s.now().UTC()
		existing, err := r.Vendors.FindByUser(ctx, p.UserID)
		switch {
		case err == nil && !existing.IsDeleted:
			return apperr.Duplicate("vendor profile")
		case err == nil:
			in.applyTo(&existing)
			existing.Portfolio = []string{}
			existing.IsDeleted = false
			existing.UpdatedAt = now
			v = existing
			return r.Vendors.Update(ctx, existing)
		case !isNotFound(err):
			return err
		}
		v = model.VendorProfile{UserID: p.UserID, CreatedAt: now, UpdatedAt: now}
		in.applyTo(&v)
		return r.Vendors.Create(ctx, &v)
	})
	return v, err
}

func (s *Service) UpdateVendorProfile(ctx context.Context, p guard.Principal, in VendorProfileInput) (v model.VendorProfile, err error) {
	defer s.track("update_vendor_profile", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return v, err
	}

	if err := validate(ctx, in); err != nil {
		return v, err
	}
	err = s.inTx(ctx, func(r *repo.Set) error {
		found, err := ownProfile(ctx, r, p)
		if err != nil {
			return err
		}
		in.applyTo(&found)
		found.UpdatedAt = s.now().UTC()
		v = found
		return r.Vendors.Update(ctx, found)
	})
	return v, err
}

func (s *Service) GetMyVendorProfile(ctx context.Context, p guard.Principal) (v model.VendorProfile, err error) {
	defer s.track("get_my_vendor_profile", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return v, err
	}

	err = s.inView(ctx, func(r *repo.Set) error {
		v, err = ownProfile(ctx, r, p)
		return err
	})
	return v, err
}

func (s *Service) DeleteVendorProfile(ctx context.Context, p guard.Principal) (err error) {
	defer s.track("delete_vendor_profile", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return err
	}

	return s.inTx(ctx, func(r *repo.Set) error {
		v, err := ownProfile(ctx, r, p)
		if err != nil {
			return err
		}
		v.IsDeleted = true
		v.UpdatedAt = s.now().UTC()
		return r.Vendors.Update(ctx, v)
	})
}

// listing hides deleted profiles and vendors who cannot sign in.
func listing(ctx context.Context, r *repo.Set, v model.VendorProfile) (VendorListing, bool, error) {
	if v.IsDeleted {
		return VendorListing{}, false, nil
	}
	u, err := r.Users.FindByID(ctx, v.UserID)
	if isNotFound(err) {
		return VendorListing{}, false, nil
	}
	if err != nil {
		return VendorListing{}, false, err
	}
	if !u.CanSignIn() {
		return VendorListing{}, false, nil
	}
	return VendorListing{Profile: v, Name: u.Name, Avatar: u.Avatar, Bio: u.Bio}, true, nil
}

func (s *Service) GetVendor(ctx context.Context, id string) (l VendorListing, err error) {
	defer s.track("get_vendor", time.Now(), &err)

	err = s.inView(ctx, func(r *repo.Set) error {
		v, err := r.Vendors.FindByID(ctx, id)
		if err != nil {
			return err
		}
		found, ok, err := listing(ctx, r, v)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("vendor profile", id)
		}
		l = found
		return nil
	})
	return l, err
}

func (s *Service) ListVendors(ctx context.Context, serviceType, location string) (out []VendorListing, err error) {
	defer s.track("list_vendors", time.Now(), &err)

	err = s.inView(ctx, func(r *repo.Set) error {
		profiles, err := r.Vendors.FindActive(ctx, strings.TrimSpace(serviceType), strings.TrimSpace(location))
		if err != nil {
			return err
		}
		out = make([]VendorListing, 0, len(profiles))
		for _, v := range profiles {
			l, ok, err := listing(ctx, r, v)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, l)
			}
		}
		return nil
	})
	return out, err
}

// AddPortfolioItem uploads an image and appends its URL to the caller's
// profile. The upload is removed again if the profile update fails.
func (s *Service) AddPortfolioItem(ctx context.Context, p guard.Principal, filename, contentType string, body io.Reader) (v model.VendorProfile, err error) {
	defer s.track("add_portfolio_item", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return v, err
	}

	if !strings.HasPrefix(contentType, "image/") {
		return v, apperr.Validation("portfolio items must be images")
	}
	var profile model.VendorProfile
	err = s.inView(ctx, func(r *repo.Set) error {
		profile, err = ownProfile(ctx, r, p)
		return err
	})
	if err != nil {
		return v, err
	}
	if len(profile.Portfolio) >= maxPortfolioItems {
		return v, apperr.Validation("portfolio is full")
	}

	key := "portfolio/" + profile.ID + "/" + uuid.NewString() + strings.ToLower(path.Ext(filename))
	info, err := s.blobs.Put(ctx, key, body, blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"vendor": profile.ID},
	})
	if err != nil {
		return v, err
	}

	err = s.inTx(ctx, func(r *repo.Set) error {
		found, err := ownProfile(ctx, r, p)
		if err != nil {
			return err
		}
		if len(found.Portfolio) >= maxPortfolioItems {
			return apperr.Validation("portfolio is full")
		}
		found.Portfolio = append(found.Portfolio, info.URL)
		found.UpdatedAt = s.now().UTC()
		v = found
		return r.Vendors.Update(ctx, found)
	})
	if err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.log.Warn().Err(delErr).Str("key", key).Msg("failed to remove orphaned portfolio upload")
		}
		return model.VendorProfile{}, err
	}
	return v, nil
}

func (s *Service) RemovePortfolioItem(ctx context.Context, p guard.Principal, url string) (v model.VendorProfile, err error) {
	defer s.track("remove_portfolio_item", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return v, err
	}

	err = s.inTx(ctx, func(r *repo.Set) error {
		found, err := ownProfile(ctx, r, p)
		if err != nil {
			return err
		}
		i := slices.Index(found.Portfolio, url)
		if i < 0 {
			return apperr.NotFound("portfolio item", "")
		}
		found.Portfolio = slices.Delete(found.Portfolio, i, i+1)
		found.UpdatedAt = s.now().UTC()
		v = found
		return r.Vendors.Update(ctx, found)
	})
	if err != nil {
		return v, err
	}
	if key, ok := s.blobs.KeyFromURL(url); ok {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to delete portfolio blob")
		}
	}
	return v, nil
}
