package domain

import "time"

// User is the 23-field dating profile. Email and phone number are unique
// identifiers; lookups happen through the email and phone_number GSIs.
type User struct {
	UserID               string    `dynamodbav:"user_id" json:"user_id"`
	Email                string    `dynamodbav:"email" json:"email"`
	PhoneNumber          *string   `dynamodbav:"phone_number,omitempty" json:"phoneNumber,omitempty"`
	FullName             string    `dynamodbav:"full_name" json:"fullName"`
	Gender               string    `dynamodbav:"gender" json:"gender"`
	InterestedIn         string    `dynamodbav:"interested_in" json:"interestedIn"`
	DOB                  string    `dynamodbav:"dob" json:"dob"`
	Hometown             string    `dynamodbav:"hometown" json:"hometown"`
	Height               int       `dynamodbav:"height" json:"height"`
	Religion             string    `dynamodbav:"religion" json:"religion"`
	Language             string    `dynamodbav:"language" json:"language"`
	Ethnicity            string    `dynamodbav:"ethnicity" json:"ethnicity"`
	SchoolName           string    `dynamodbav:"school_name,omitempty" json:"schoolName,omitempty"`
	Education            string    `dynamodbav:"education" json:"education"`
	JobTitle             string    `dynamodbav:"job_title,omitempty" json:"jobTitle,omitempty"`
	CompanyName          string    `dynamodbav:"company_name,omitempty" json:"companyName,omitempty"`
	SocialHandle         string    `dynamodbav:"social_handle,omitempty" json:"socialHandle,omitempty"`
	SocialHandlePlatform string    `dynamodbav:"social_handle_platform,omitempty" json:"socialHandlePlatform,omitempty"`
	Drinking             string    `dynamodbav:"drinking" json:"drinking"`
	Smoking              string    `dynamodbav:"smoking" json:"smoking"`
	IceBreakers1         string    `dynamodbav:"ice_breakers_1" json:"iceBreakers1"`
	IceBreakers2         string    `dynamodbav:"ice_breakers_2" json:"iceBreakers2"`
	IceBreakers3         string    `dynamodbav:"ice_breakers_3" json:"iceBreakers3"`
	PoliticalAffiliation string    `dynamodbav:"political_affiliation,omitempty" json:"politicalAffiliation,omitempty"`
	Images               []string  `dynamodbav:"images" json:"images"`
	CreatedAt            time.Time `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt            time.Time `dynamodbav:"updated_at" json:"updated_at"`
}

// CreateUserRequest carries the full registration form. It is validated at
// submission time, stashed in the registration OTP's metadata, and replayed
// into user creation once the code is verified.
type CreateUserRequest struct {
	Email                string   `json:"email" validate:"required,email"`
	PhoneNumber          *string  `json:"phoneNumber,omitempty"`
	FullName             string   `json:"fullName" validate:"required"`
	Gender               string   `json:"gender" validate:"required,oneof=male female other"`
	InterestedIn         string   `json:"interestedIn" validate:"required,oneof=male female both"`
	DOB                  string   `json:"dob" validate:"required,datetime=2006-01-02,adult"`
	Hometown             string   `json:"hometown" validate:"required"`
	Height               int      `json:"height" validate:"required,gt=0"`
	Religion             string   `json:"religion" validate:"required"`
	Language             string   `json:"language" validate:"required"`
	Ethnicity            string   `json:"ethnicity" validate:"required"`
	SchoolName           string   `json:"schoolName,omitempty"`
	Education            string   `json:"education" validate:"required"`
	JobTitle             string   `json:"jobTitle,omitempty"`
	CompanyName          string   `json:"companyName,omitempty"`
	SocialHandle         string   `json:"socialHandle,omitempty"`
	SocialHandlePlatform string   `json:"socialHandlePlatform,omitempty" validate:"omitempty,oneof=instagram twitter facebook tiktok snapchat"`
	Drinking             string   `json:"drinking" validate:"required,oneof=never socially regularly"`
	Smoking              string   `json:"smoking" validate:"required,oneof=never occasionally regularly"`
	IceBreakers1         string   `json:"iceBreakers1" validate:"required"`
	IceBreakers2         string   `json:"iceBreakers2" validate:"required"`
	IceBreakers3         string   `json:"iceBreakers3" validate:"required"`
	PoliticalAffiliation string   `json:"politicalAffiliation,omitempty" validate:"omitempty,oneof=liberal conservative moderate independent other"`
	Images               []string `json:"images" validate:"required,min=4,max=6,dive,url"`
}
